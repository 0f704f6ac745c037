// Package media は音声の取得と分割（yt-dlp / ffprobe / ffmpeg）を提供します。
package media

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CommandResult は外部コマンドの実行結果です。
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner は外部コマンドの実行を抽象化します（テストで差し替え可能）。
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner は os/exec でコマンドを実行します。
type ExecRunner struct{}

// Run は1つのコマンドを実行し、標準出力・標準エラー・終了コードを返します。
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// LastLine は stderr の最終行を返します（エラーメッセージ用）。
func LastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

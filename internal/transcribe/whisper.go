package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yourusername/quam/internal/media"
	"github.com/yourusername/quam/internal/storage"
)

// WhisperCPP は whisper.cpp の CLI でチャンクを文字起こしします。
type WhisperCPP struct {
	binPath   string
	modelPath string
	runner    media.CommandRunner
}

// NewWhisperCPP は WhisperCPP を作成します。
func NewWhisperCPP(binPath, modelPath string, runner media.CommandRunner) *WhisperCPP {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &WhisperCPP{binPath: binPath, modelPath: modelPath, runner: runner}
}

// Transcribe は audioPath を文字起こしし、出力した .txt を読み取って削除します。
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	if w.modelPath == "" {
		return "", fmt.Errorf("%w: whisper model path is not configured", ErrTranscription)
	}

	outBase := strings.TrimSuffix(audioPath, ".mp3") + "_text"
	textPath := outBase + ".txt"
	defer func() {
		_ = storage.Remove(textPath)
	}()

	res, err := w.runner.Run(ctx, w.binPath, buildWhisperArgs(w.modelPath, audioPath, outBase, language)...)
	if err != nil {
		msg := media.LastLine(res.Stderr)
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: whisper.cpp: %s", ErrTranscription, msg)
	}

	content, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("%w: transcript file is missing: %v", ErrTranscription, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// buildWhisperArgs は txt 出力用の whisper.cpp 引数を組み立てます。
// 言語指定がない場合は auto を渡します（whisper.cpp の既定は en のため）。
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "auto"
	}
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-l", lang,
		"-of", outBase,
		"-otxt",
		"-np",
	}
}

// Package transcribe は音声チャンクの文字起こしバックエンドを提供します。
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTranscription はモデルがチャンクの文字起こしに失敗したことを表します。
var ErrTranscription = errors.New("transcription failed")

// Transcriber は1つの音声ファイルをテキストに変換します。
// language が空の場合はバックエンド側の自動判定に任せます。
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// Backend はバックエンド種別です。
type Backend string

const (
	BackendWhisperCPP Backend = "whisper-cpp"
	BackendOpenAI     Backend = "openai"
)

// Options は New に渡すバックエンド設定です。
type Options struct {
	Backend Backend

	WhisperPath      string
	WhisperModelPath string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// New は設定されたバックエンドの Transcriber を返します。
func New(opts Options) (Transcriber, error) {
	switch Backend(strings.TrimSpace(string(opts.Backend))) {
	case BackendWhisperCPP, "":
		return NewWhisperCPP(opts.WhisperPath, opts.WhisperModelPath, nil), nil
	case BackendOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, errors.New("openai backend requires an API key")
		}
		return NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIModel, opts.OpenAIBaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported transcribe backend: %s", opts.Backend)
	}
}

package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/yourusername/quam/internal/storage"
)

// ErrFetch は音声のダウンロードに失敗したことを表します。
var ErrFetch = errors.New("audio fetch failed")

const fetchAudioFormat = "mp3"

// Fetcher は yt-dlp を利用して URL から音声を取得します。
type Fetcher struct {
	ytdlpPath string
	runner    CommandRunner
}

// NewFetcher は Fetcher を作成します。
func NewFetcher(ytdlpPath string, runner CommandRunner) *Fetcher {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Fetcher{ytdlpPath: ytdlpPath, runner: runner}
}

// Fetch は url の最良音声を destBase.mp3 に保存し、そのパスを返します。
// 失敗時は destBase から始まる途中ファイルを削除します。
func (f *Fetcher) Fetch(ctx context.Context, url, destBase string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("%w: url is required", ErrFetch)
	}
	if destBase == "" {
		return "", fmt.Errorf("%w: destination is required", ErrFetch)
	}

	out := destBase + "." + fetchAudioFormat
	res, err := f.runner.Run(ctx, f.ytdlpPath, buildYTDLPArgs(url, destBase)...)
	if err != nil {
		_ = storage.RemoveMatching(destBase)
		if msg := LastLine(res.Stderr); msg != "" {
			return "", fmt.Errorf("%w: %s", ErrFetch, msg)
		}
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}

	if _, err := os.Stat(out); err != nil {
		_ = storage.RemoveMatching(destBase)
		return "", fmt.Errorf("%w: yt-dlp completed but %s is missing", ErrFetch, out)
	}
	return out, nil
}

// buildYTDLPArgs は bestaudio を取得して mp3 に変換する引数を組み立てます。
func buildYTDLPArgs(url, destBase string) []string {
	return []string{
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", fetchAudioFormat,
		"--output", destBase + ".%(ext)s",
		url,
	}
}

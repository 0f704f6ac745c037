package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yourusername/quam/internal/storage"
)

// ErrDecode は音声ファイルが読めない、または壊れていることを表します。
var ErrDecode = errors.New("audio decode failed")

// DefaultChunkDuration はチャンク長の既定値（5分）です。
const DefaultChunkDuration = 5 * time.Minute

// Window は元音声の中の1チャンク分の区間です。
type Window struct {
	Start    time.Duration
	Duration time.Duration
}

// Splitter は ffprobe / ffmpeg で音声を固定長チャンクに分割します。
type Splitter struct {
	ffmpegPath  string
	ffprobePath string
	runner      CommandRunner
}

// NewSplitter は Splitter を作成します。
func NewSplitter(ffmpegPath, ffprobePath string, runner CommandRunner) *Splitter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Splitter{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}

// Split は audioPath を chunk ごとの mp3 に分割し、時系列順のパスを返します。
// 失敗した場合は書き出し済みのチャンクを削除してからエラーを返します。
// 元ファイルは削除しません。
func (s *Splitter) Split(ctx context.Context, audioPath string, chunk time.Duration) (_ []string, err error) {
	if chunk <= 0 {
		chunk = DefaultChunkDuration
	}
	if err := checkMediaType(audioPath); err != nil {
		return nil, err
	}

	total, err := s.probeDuration(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	windows := PlanWindows(total, chunk)
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: audio has no duration", ErrDecode)
	}

	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	chunks := make([]string, 0, len(windows))
	defer func() {
		if err != nil {
			_ = storage.RemoveAll(chunks)
		}
	}()

	for i, w := range windows {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		out := fmt.Sprintf("%s_chunk_%03d.mp3", base, i)
		chunks = append(chunks, out)

		res, runErr := s.runner.Run(ctx, s.ffmpegPath, buildChunkArgs(audioPath, out, w)...)
		if runErr != nil {
			msg := LastLine(res.Stderr)
			if msg == "" {
				msg = runErr.Error()
			}
			return nil, fmt.Errorf("%w: chunk %d: %s", ErrDecode, i, msg)
		}
		if _, statErr := os.Stat(out); statErr != nil {
			return nil, fmt.Errorf("%w: ffmpeg completed but chunk %d is missing", ErrDecode, i)
		}
	}
	return chunks, nil
}

// PlanWindows は total を chunk 長の連続した区間に分けます。最後の区間は短くなり得ます。
func PlanWindows(total, chunk time.Duration) []Window {
	if total <= 0 || chunk <= 0 {
		return nil
	}
	windows := make([]Window, 0, int((total+chunk-1)/chunk))
	for start := time.Duration(0); start < total; start += chunk {
		d := chunk
		if rest := total - start; rest < d {
			d = rest
		}
		windows = append(windows, Window{Start: start, Duration: d})
	}
	return windows
}

func (s *Splitter) probeDuration(ctx context.Context, audioPath string) (time.Duration, error) {
	res, err := s.runner.Run(ctx, s.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		msg := LastLine(res.Stderr)
		if msg == "" {
			msg = err.Error()
		}
		return 0, fmt.Errorf("%w: ffprobe: %s", ErrDecode, msg)
	}

	raw := strings.TrimSpace(res.Stdout)
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%w: unexpected duration %q", ErrDecode, raw)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond), nil
}

// checkMediaType は先頭バイトから音声/動画ファイルであることを確認します。
func checkMediaType(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		name := m.String()
		if strings.HasPrefix(name, "audio/") || strings.HasPrefix(name, "video/") || strings.HasPrefix(name, "application/ogg") {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported media type %s", ErrDecode, mt.String())
}

// buildChunkArgs は1区間を mono 16kHz mp3 に書き出す ffmpeg 引数を組み立てます。
func buildChunkArgs(inputPath, outPath string, w Window) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(w.Start),
		"-t", formatSeconds(w.Duration),
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		outPath,
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

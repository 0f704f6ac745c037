package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeRunner は ffprobe/ffmpeg/yt-dlp の呼び出しを記録し、出力ファイルを生成します。
type fakeRunner struct {
	mu        sync.Mutex
	calls     [][]string
	duration  string
	failOnRun int // n回目の ffmpeg 呼び出しで失敗させる（1始まり、0なら失敗しない）
	ffmpegRun int
	fetchErr  error
	stderr    string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))

	switch name {
	case "ffprobe":
		return CommandResult{Stdout: r.duration + "\n"}, nil
	case "ffmpeg":
		r.ffmpegRun++
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("ID3chunk"), 0o640); err != nil {
			return CommandResult{}, err
		}
		if r.failOnRun > 0 && r.ffmpegRun == r.failOnRun {
			return CommandResult{Stderr: "Invalid data found when processing input", ExitCode: 1}, errors.New("exit status 1")
		}
		return CommandResult{}, nil
	case "yt-dlp":
		var tmpl string
		for i, a := range args {
			if a == "--output" {
				tmpl = args[i+1]
			}
		}
		if r.fetchErr != nil {
			_ = os.WriteFile(strings.Replace(tmpl, "%(ext)s", "webm.part", 1), []byte("partial"), 0o640)
			return CommandResult{Stderr: r.stderr, ExitCode: 1}, r.fetchErr
		}
		return CommandResult{}, os.WriteFile(strings.Replace(tmpl, "%(ext)s", "mp3", 1), []byte("ID3audio"), 0o640)
	}
	return CommandResult{}, errors.New("unexpected command " + name)
}

func writeWAV(t *testing.T, dir string) string {
	t.Helper()
	header := []byte("RIFF\x24\x08\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00\x80\x3e\x00\x00\x00\x7d\x00\x00\x02\x00\x10\x00data\x00\x08\x00\x00")
	data := append(header, make([]byte, 2048)...)
	path := filepath.Join(dir, "audio_test.wav")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	return path
}

func TestPlanWindows(t *testing.T) {
	windows := PlanWindows(12*time.Minute, 5*time.Minute)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	want := []Window{
		{Start: 0, Duration: 5 * time.Minute},
		{Start: 5 * time.Minute, Duration: 5 * time.Minute},
		{Start: 10 * time.Minute, Duration: 2 * time.Minute},
	}
	for i, w := range want {
		if windows[i] != w {
			t.Fatalf("windows[%d] = %+v, want %+v", i, windows[i], w)
		}
	}

	if got := PlanWindows(10*time.Minute, 5*time.Minute); len(got) != 2 {
		t.Fatalf("exact multiple should give 2 windows, got %d", len(got))
	}
	if got := PlanWindows(0, 5*time.Minute); got != nil {
		t.Fatalf("zero duration should give no windows, got %v", got)
	}
}

func TestSplitWritesOrderedChunks(t *testing.T) {
	dir := t.TempDir()
	src := writeWAV(t, dir)
	runner := &fakeRunner{duration: "660.250000"}
	splitter := NewSplitter("ffmpeg", "ffprobe", runner)

	chunks, err := splitter.Split(context.Background(), src, 5*time.Minute)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(c, []string{"_chunk_000.mp3", "_chunk_001.mp3", "_chunk_002.mp3"}[i]) {
			t.Fatalf("unexpected chunk name at %d: %s", i, c)
		}
		if _, err := os.Stat(c); err != nil {
			t.Fatalf("chunk %d missing: %v", i, err)
		}
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must not be deleted: %v", err)
	}

	last := runner.calls[len(runner.calls)-1]
	joined := strings.Join(last, " ")
	if !strings.Contains(joined, "-ss 600.000") || !strings.Contains(joined, "-t 60.250") {
		t.Fatalf("unexpected args for final chunk: %s", joined)
	}
}

func TestSplitCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	src := writeWAV(t, dir)
	runner := &fakeRunner{duration: "900", failOnRun: 2}
	splitter := NewSplitter("ffmpeg", "ffprobe", runner)

	_, err := splitter.Split(context.Background(), src, 5*time.Minute)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*_chunk_*"))
	if len(matches) != 0 {
		t.Fatalf("expected no chunk files left, got %v", matches)
	}
}

func TestSplitRejectsNonMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("this is not audio at all\n"), 0o640); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	splitter := NewSplitter("ffmpeg", "ffprobe", &fakeRunner{duration: "10"})

	if _, err := splitter.Split(context.Background(), path, time.Minute); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSplitMissingFile(t *testing.T) {
	splitter := NewSplitter("ffmpeg", "ffprobe", &fakeRunner{duration: "10"})
	_, err := splitter.Split(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), time.Minute)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSplitRejectsBadDuration(t *testing.T) {
	src := writeWAV(t, t.TempDir())
	splitter := NewSplitter("ffmpeg", "ffprobe", &fakeRunner{duration: "N/A"})
	if _, err := splitter.Split(context.Background(), src, time.Minute); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestFetchSuccess(t *testing.T) {
	base := filepath.Join(t.TempDir(), "audio_1")
	fetcher := NewFetcher("yt-dlp", &fakeRunner{})

	path, err := fetcher.Fetch(context.Background(), "https://example.com/watch?v=1", base)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if path != base+".mp3" {
		t.Fatalf("unexpected path: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("fetched file missing: %v", err)
	}
}

func TestFetchFailureRemovesPartialFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "audio_2")
	runner := &fakeRunner{
		fetchErr: errors.New("exit status 1"),
		stderr:   "WARNING: x\nERROR: Video unavailable",
	}
	fetcher := NewFetcher("yt-dlp", runner)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/watch?v=2", base)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if !strings.Contains(err.Error(), "Video unavailable") {
		t.Fatalf("expected stderr message in error, got %v", err)
	}
	matches, _ := filepath.Glob(base + "*")
	if len(matches) != 0 {
		t.Fatalf("expected partial files to be removed, got %v", matches)
	}
}

func TestBuildYTDLPArgs(t *testing.T) {
	args := buildYTDLPArgs("https://example.com/v", "/tmp/audio_x")
	joined := strings.Join(args, " ")
	for _, want := range []string{"--format bestaudio/best", "--audio-format mp3", "--output /tmp/audio_x.%(ext)s"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "https://example.com/v" {
		t.Fatalf("url must be last arg: %v", args)
	}
}

func TestLastLine(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"single":                             "single",
		"first\nsecond\n":                    "second",
		"  progress\n  ERROR: bad input  \n": "ERROR: bad input",
	}
	for in, want := range cases {
		if got := LastLine(in); got != want {
			t.Errorf("LastLine(%q) = %q, want %q", in, got, want)
		}
	}
}

package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/quam/internal/media"
)

type stubWhisperRunner struct {
	args   []string
	text   string
	err    error
	stderr string
}

func (r *stubWhisperRunner) Run(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
	r.args = args
	if r.err != nil {
		return media.CommandResult{Stderr: r.stderr, ExitCode: 1}, r.err
	}
	var outBase string
	for i, a := range args {
		if a == "-of" {
			outBase = args[i+1]
		}
	}
	return media.CommandResult{}, os.WriteFile(outBase+".txt", []byte(r.text), 0o640)
}

func writeChunk(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio_x_chunk_000.mp3")
	if err := os.WriteFile(path, []byte("ID3chunk"), 0o640); err != nil {
		t.Fatalf("failed to write chunk: %v", err)
	}
	return path
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestWhisperCPPTranscribe(t *testing.T) {
	chunk := writeChunk(t)
	runner := &stubWhisperRunner{text: "  hello world \n"}
	w := NewWhisperCPP("whisper-cli", "/models/ggml-small.bin", runner)

	text, err := w.Transcribe(context.Background(), chunk, "zh")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected text: %q", text)
	}
	if got := argValue(runner.args, "-l"); got != "zh" {
		t.Fatalf("unexpected language arg: %q", got)
	}
	if _, err := os.Stat(strings.TrimSuffix(chunk, ".mp3") + "_text.txt"); !os.IsNotExist(err) {
		t.Fatalf("expected transcript file to be removed, stat err=%v", err)
	}
}

func TestWhisperCPPAutoDetectsWithoutHint(t *testing.T) {
	runner := &stubWhisperRunner{text: "x"}
	w := NewWhisperCPP("whisper-cli", "/models/ggml-small.bin", runner)

	if _, err := w.Transcribe(context.Background(), writeChunk(t), ""); err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if got := argValue(runner.args, "-l"); got != "auto" {
		t.Fatalf("expected -l auto, got %q", got)
	}
}

func TestWhisperCPPFailure(t *testing.T) {
	runner := &stubWhisperRunner{err: errors.New("exit status 1"), stderr: "whisper_init_from_file: loading model\nerror: failed to read audio\n"}
	w := NewWhisperCPP("whisper-cli", "/models/ggml-small.bin", runner)

	_, err := w.Transcribe(context.Background(), writeChunk(t), "")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to read audio") || strings.Contains(err.Error(), "loading model") {
		t.Fatalf("expected only the last stderr line in error, got %v", err)
	}
}

func TestWhisperCPPRequiresModel(t *testing.T) {
	w := NewWhisperCPP("", "", &stubWhisperRunner{})
	if _, err := w.Transcribe(context.Background(), writeChunk(t), ""); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	var gotLang, gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLang = r.FormValue("language")
		gotModel = r.FormValue("model")
		gotAuth = r.Header.Get("Authorization")
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, f)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" 你好 "}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "", srv.URL+"/v1/", srv.Client())
	text, err := o.Transcribe(context.Background(), writeChunk(t), "zh")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "你好" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotLang != "zh" || gotModel != "whisper-1" || gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected request: lang=%q model=%q auth=%q", gotLang, gotModel, gotAuth)
	}
}

func TestOpenAIHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad audio"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "whisper-1", srv.URL, srv.Client())
	_, err := o.Transcribe(context.Background(), writeChunk(t), "")
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	tr, err := New(Options{Backend: BackendWhisperCPP, WhisperModelPath: "/m.bin"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := tr.(*WhisperCPP); !ok {
		t.Fatalf("expected *WhisperCPP, got %T", tr)
	}

	if _, err := New(Options{Backend: BackendOpenAI}); err == nil {
		t.Fatal("expected error for openai without key")
	}
	tr, err = New(Options{Backend: BackendOpenAI, OpenAIAPIKey: "sk"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := tr.(*OpenAI); !ok {
		t.Fatalf("expected *OpenAI, got %T", tr)
	}

	if _, err := New(Options{Backend: "vosk"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// Package jobs は文字起こしジョブの登録・実行・キャンセルを提供します。
package jobs

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/yourusername/quam/internal/storage"
)

const transcriptSeparator = " "

// outcome はワーカーが最終的に遷移させる状態です。
type outcome struct {
	status Status
	err    *Error
}

// run は1ジョブを最後まで実行します。一時ファイルを削除してから終了状態に遷移させます。
func (m *Manager) run(t *task, jobID, url, language string) {
	defer m.wg.Done()
	defer close(t.done)

	audioBase := m.workspace.NewAudioBase()
	out := m.execute(jobID, url, language, audioBase)
	m.cleanup(jobID, audioBase)
	m.finish(jobID, out)
}

func (m *Manager) execute(jobID, url, language, audioBase string) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("job=%s panic: %v\n%s", jobID, r, debug.Stack())
			out = outcome{
				status: StatusError,
				err:    newError(CodeInternal, fmt.Sprintf("internal error: %v", r), nil),
			}
		}
	}()

	if m.sem != nil {
		if err := m.sem.Acquire(m.ctx, 1); err != nil {
			return outcome{status: StatusCancelled}
		}
		defer m.sem.Release(1)
	}
	if m.cancelRequested(jobID) {
		return outcome{status: StatusCancelled}
	}

	audioPath, err := m.fetcher.Fetch(m.ctx, url, audioBase)
	if err != nil {
		return m.failure(jobID, CodeFetchFailed, err)
	}
	m.logger.Printf("job=%s downloaded audio to %s", jobID, audioPath)
	if _, err := m.update(jobID, func(j *Job) {
		j.AudioFilename = audioPath
	}); err != nil {
		return m.failure(jobID, CodeInternal, err)
	}

	chunks, err := m.splitter.Split(m.ctx, audioPath, m.chunkDuration)
	if err != nil {
		return m.failure(jobID, CodeDecodeFailed, err)
	}
	// キャンセル要求が最初のチャンク完了前に来ても削除できるよう、文字起こし前に記録する
	if _, err := m.update(jobID, func(j *Job) {
		j.AudioFilename = audioPath
		j.ChunkFiles = append([]string(nil), chunks...)
		j.TotalChunks = len(chunks)
	}); err != nil {
		_ = storage.RemoveAll(chunks)
		return m.failure(jobID, CodeInternal, err)
	}
	m.logger.Printf("job=%s split into %d chunks", jobID, len(chunks))

	lang := NormalizeLanguage(language)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if m.cancelRequested(jobID) {
			m.logger.Printf("job=%s cancelled after %d/%d chunks", jobID, i, len(chunks))
			return outcome{status: StatusCancelled}
		}

		text, err := m.transcriber.Transcribe(m.ctx, chunk, lang)
		if err != nil {
			return m.failure(jobID, CodeTranscriptionFailed, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}

		transcript := strings.Join(parts, transcriptSeparator)
		current := i + 1
		if _, err := m.update(jobID, func(j *Job) {
			j.CurrentChunk = current
			j.TotalChunks = len(chunks)
			j.Transcript = transcript
		}); err != nil {
			return m.failure(jobID, CodeInternal, err)
		}

		if err := storage.Remove(chunk); err != nil {
			m.logger.Printf("job=%s failed to remove chunk %s: %v", jobID, chunk, err)
		}
	}
	return outcome{status: StatusDone}
}

// failure はエラーを終了状態に変換します。
// キャンセル要求後の失敗（コントローラーがファイルを消した等）は cancelled として扱います。
func (m *Manager) failure(jobID, code string, err error) outcome {
	if m.cancelRequested(jobID) {
		m.logger.Printf("job=%s stopped after cancel: %v", jobID, err)
		return outcome{status: StatusCancelled}
	}
	m.logger.Printf("job=%s error code=%s: %v", jobID, code, err)

	var jobErr *Error
	if errors.As(err, &jobErr) {
		return outcome{status: StatusError, err: jobErr}
	}
	return outcome{status: StatusError, err: newError(code, err.Error(), err)}
}

func (m *Manager) cancelRequested(jobID string) bool {
	job, err := m.registry.Get(jobID)
	if err != nil {
		return false
	}
	return job.Cancelled
}

// cleanup は元音声と残っているチャンクを削除します。削除の失敗はログのみです。
func (m *Manager) cleanup(jobID, audioBase string) {
	job, err := m.registry.Get(jobID)
	if err != nil {
		m.logger.Printf("job=%s cleanup skipped: %v", jobID, err)
		return
	}
	files := append(job.ChunkFiles, job.AudioFilename)
	if err := storage.RemoveAll(files); err != nil {
		m.logger.Printf("job=%s cleanup failed: %v", jobID, err)
	}
	if err := storage.RemoveMatching(audioBase); err != nil {
		m.logger.Printf("job=%s cleanup of %s* failed: %v", jobID, audioBase, err)
	}
}

func (m *Manager) finish(jobID string, out outcome) {
	job, err := m.update(jobID, func(j *Job) {
		j.Status = out.status
		// cleanup 後に届いたキャンセル要求は結果に反映されないため残さない
		if out.status != StatusCancelled {
			j.Cancelled = false
		}
		if out.err != nil {
			j.ErrorCode = out.err.Code
			j.ErrorMessage = out.err.Error()
		}
		j.AudioFilename = ""
		j.ChunkFiles = nil
	})
	if err != nil {
		return
	}
	m.logger.Printf("job=%s %s chunk=%d/%d", jobID, job.Status, job.CurrentChunk, job.TotalChunks)
}

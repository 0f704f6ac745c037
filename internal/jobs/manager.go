package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/quam/internal/storage"
)

const (
	publishTimeout = 2 * time.Second
	eventBuffer    = 256
)

// Fetcher は URL の音声をローカルファイルに保存します。
type Fetcher interface {
	Fetch(ctx context.Context, url, destBase string) (string, error)
}

// Splitter は音声ファイルを時系列順のチャンクファイルに分割します。
type Splitter interface {
	Split(ctx context.Context, audioPath string, chunk time.Duration) ([]string, error)
}

// Transcriber は1チャンクを文字起こしします。
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// Workspace は一時音声ファイルの名前を払い出します。
type Workspace interface {
	NewAudioBase() string
}

// Deps は Manager が利用する外部機能です。
type Deps struct {
	Fetcher     Fetcher
	Splitter    Splitter
	Transcriber Transcriber
	Workspace   Workspace
	Publisher   Publisher // nil の場合は通知しません
}

// Options は Manager の動作設定です。
type Options struct {
	ChunkDuration time.Duration
	MaxConcurrent int // 0 以下なら無制限
}

type task struct {
	done chan struct{}
}

// Manager はジョブの作成・実行・キャンセルを担います。
type Manager struct {
	registry      *Registry
	fetcher       Fetcher
	splitter      Splitter
	transcriber   Transcriber
	workspace     Workspace
	publisher     Publisher
	chunkDuration time.Duration
	sem           *semaphore.Weighted
	logger        *log.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup

	// pubMu は状態更新とイベント投入の順序を揃えます。
	pubMu        sync.Mutex
	events       chan Event
	eventsClosed bool
	dispatched   chan struct{}
}

// NewManager は Manager を初期化します。
func NewManager(deps Deps, opts Options, logger *log.Logger) (*Manager, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is nil")
	}
	if deps.Splitter == nil {
		return nil, errors.New("splitter is nil")
	}
	if deps.Transcriber == nil {
		return nil, errors.New("transcriber is nil")
	}
	if deps.Workspace == nil {
		return nil, errors.New("workspace is nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		registry:      NewRegistry(),
		fetcher:       deps.Fetcher,
		splitter:      deps.Splitter,
		transcriber:   deps.Transcriber,
		workspace:     deps.Workspace,
		publisher:     deps.Publisher,
		chunkDuration: opts.ChunkDuration,
		logger:        logger,
		ctx:           ctx,
		stop:          stop,
		tasks:         make(map[string]*task),
	}
	if opts.MaxConcurrent > 0 {
		m.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if m.publisher != nil {
		m.events = make(chan Event, eventBuffer)
		m.dispatched = make(chan struct{})
		go m.dispatch()
	}
	return m, nil
}

// StartJob はジョブを登録してワーカーを起動し、すぐにジョブIDを返します。
func (m *Manager) StartJob(ctx context.Context, url, language string) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShuttingDown
	}

	jobID := uuid.NewString()
	m.pubMu.Lock()
	err := m.registry.Create(Job{
		ID:       jobID,
		URL:      url,
		Language: language,
		Status:   StatusProcessing,
	})
	if err == nil {
		if job, getErr := m.registry.Get(jobID); getErr == nil {
			m.enqueue(job)
		}
	}
	m.pubMu.Unlock()
	if err != nil {
		m.mu.Unlock()
		return "", err
	}

	t := &task{done: make(chan struct{})}
	m.tasks[jobID] = t
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Printf("job=%s started url=%s lang=%q", jobID, url, language)
	go m.run(t, jobID, url, language)
	return jobID, nil
}

// CancelJob はキャンセルフラグを立て、記録済みの一時ファイルを削除します。
// ワーカーの停止は待ちません。終了済みジョブに対しては何もせず現在の状態を返します。
func (m *Manager) CancelJob(jobID string) (Snapshot, error) {
	m.pubMu.Lock()
	job, err := m.registry.Update(jobID, func(j *Job) {
		if !j.Status.Terminal() {
			j.Cancelled = true
		}
	})
	if err == nil && !job.Status.Terminal() {
		m.enqueue(job)
	}
	m.pubMu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	if job.Status.Terminal() {
		return snapshotOf(job), nil
	}

	m.logger.Printf("job=%s cancel requested chunk=%d/%d", jobID, job.CurrentChunk, job.TotalChunks)
	files := append(job.ChunkFiles, job.AudioFilename)
	if err := storage.RemoveAll(files); err != nil {
		m.logger.Printf("job=%s cleanup on cancel failed: %v", jobID, err)
	}
	return snapshotOf(job), nil
}

// GetJob はジョブのスナップショットを返します。
func (m *Manager) GetJob(jobID string) (Snapshot, error) {
	job, err := m.registry.Get(jobID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(job), nil
}

// ListJobs は全ジョブのスナップショットを作成順に返します。
func (m *Manager) ListJobs() []Snapshot {
	jobs := m.registry.List()
	out := make([]Snapshot, len(jobs))
	for i, job := range jobs {
		out[i] = snapshotOf(job)
	}
	return out
}

// Done はワーカーの終了（一時ファイル削除を含む）で閉じられるチャネルを返します。
func (m *Manager) Done(jobID string) (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return t.done, nil
}

// Shutdown は新規受付を止め、処理中のジョブをキャンセルしてワーカーの終了を待ちます。
// 積まれた進捗イベントの送信も待ちます。
// ctx が先に終わった場合は実行中の外部コマンドを中断します。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	for _, job := range m.registry.List() {
		if job.Status.Terminal() {
			continue
		}
		if _, err := m.CancelJob(job.ID); err != nil {
			m.logger.Printf("job=%s cancel on shutdown failed: %v", job.ID, err)
		}
	}

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		m.stop()
		_ = m.closeEvents(ctx)
		return ctx.Err()
	}
	m.stop()
	return m.closeEvents(ctx)
}

func (m *Manager) update(jobID string, mutate func(*Job)) (Job, error) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	job, err := m.registry.Update(jobID, mutate)
	if err != nil {
		m.logger.Printf("job=%s failed to update state: %v", jobID, err)
		return job, err
	}
	m.enqueue(job)
	return job, nil
}

// enqueue はイベントを送信待ちに積みます。バッファが一杯なら破棄します。
// 呼び出し側は pubMu を保持していること。
func (m *Manager) enqueue(job Job) {
	if m.events == nil || m.eventsClosed {
		return
	}
	select {
	case m.events <- eventOf(job):
	default:
		m.logger.Printf("job=%s event dropped: buffer full", job.ID)
	}
}

// dispatch は積まれた順にイベントを送信します。
func (m *Manager) dispatch() {
	defer close(m.dispatched)
	for event := range m.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.publisher.Publish(ctx, event); err != nil {
			m.logger.Printf("job=%s failed to publish event: %v", event.JobID, err)
		}
		cancel()
	}
}

// closeEvents は以降のイベントを受け付けず、積まれた分の送信完了を待ちます。
func (m *Manager) closeEvents(ctx context.Context) error {
	if m.events == nil {
		return nil
	}
	m.pubMu.Lock()
	if !m.eventsClosed {
		m.eventsClosed = true
		close(m.events)
	}
	m.pubMu.Unlock()

	select {
	case <-m.dispatched:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry はプロセス内のジョブ状態を保持します。
// 永続化はしません（再起動で消えます）。
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry は空の Registry を作成します。
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create はジョブを登録します。同じIDが既にある場合はエラーです。
func (r *Registry) Create(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	now := r.now().UTC()
	if job.Status == "" {
		job.Status = StatusProcessing
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	stored := job.clone()
	r.jobs[job.ID] = &stored
	return nil
}

// Get はジョブのコピーを返します。
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job.clone(), nil
}

// Update は mutate をジョブのコピーに適用し、他の更新と排他的に反映します。
// 終了状態のジョブの Status を変更しようとした場合は何も反映せず ErrJobFinished を返します。
func (r *Registry) Update(id string, mutate func(*Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}

	next := current.clone()
	mutate(&next)
	next.ID = current.ID

	if current.Status.Terminal() && next.Status != current.Status {
		return current.clone(), ErrJobFinished
	}
	now := r.now().UTC()
	if next.Status.Terminal() && next.FinishedAt.IsZero() {
		next.FinishedAt = now
	}
	next.UpdatedAt = now
	*current = next
	return current.clone(), nil
}

// List は作成順に並べた全ジョブのコピーを返します。
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

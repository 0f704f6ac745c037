package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal は終了状態（done / error / cancelled）かどうかを返します。
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job はジョブの内部状態です。レジストリの外にはコピーだけが渡ります。
type Job struct {
	ID       string
	URL      string
	Language string

	Status       Status
	Transcript   string
	CurrentChunk int
	TotalChunks  int
	Cancelled    bool

	ErrorCode    string
	ErrorMessage string

	// ワーカーが所有する一時ファイル。キャンセル時はコントローラーも削除に使います。
	AudioFilename string
	ChunkFiles    []string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

func (j Job) clone() Job {
	if j.ChunkFiles != nil {
		j.ChunkFiles = append([]string(nil), j.ChunkFiles...)
	}
	return j
}

// Snapshot はポーリング API に返すジョブの読み取り専用ビューです。
type Snapshot struct {
	JobID           string     `json:"job_id"`
	Status          Status     `json:"status"`
	Transcript      string     `json:"transcript"`
	CurrentChunk    int        `json:"current_chunk"`
	TotalChunks     int        `json:"total_chunks"`
	Language        string     `json:"language,omitempty"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	Error           string     `json:"error,omitempty"`
	ErrorCode       string     `json:"error_code,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

func snapshotOf(j Job) Snapshot {
	s := Snapshot{
		JobID:           j.ID,
		Status:          j.Status,
		Transcript:      j.Transcript,
		CurrentChunk:    j.CurrentChunk,
		TotalChunks:     j.TotalChunks,
		Language:        j.Language,
		CancelRequested: j.Cancelled,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
	if j.Status == StatusError {
		s.Error = j.ErrorMessage
		s.ErrorCode = j.ErrorCode
	}
	if !j.FinishedAt.IsZero() {
		finished := j.FinishedAt
		s.FinishedAt = &finished
	}
	return s
}

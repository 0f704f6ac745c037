package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultEventsChannel = "transcribe:events"

// Event はジョブの状態変化を外部へ通知するためのペイロードです。
type Event struct {
	JobID           string    `json:"job_id"`
	Status          Status    `json:"status"`
	CurrentChunk    int       `json:"current_chunk"`
	TotalChunks     int       `json:"total_chunks"`
	CancelRequested bool      `json:"cancel_requested,omitempty"`
	Error           string    `json:"error,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher はジョブイベントの通知先です。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func eventOf(j Job) Event {
	e := Event{
		JobID:           j.ID,
		Status:          j.Status,
		CurrentChunk:    j.CurrentChunk,
		TotalChunks:     j.TotalChunks,
		CancelRequested: j.Cancelled,
		At:              j.UpdatedAt,
	}
	if j.Status == StatusError {
		e.Error = j.ErrorMessage
	}
	return e
}

// RedisPublisher は Redis Pub/Sub にイベントを流します。
// Pub/Sub はメッセージを保存しないため、ジョブ状態は永続化されません。
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher は RedisPublisher を作成します。
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = defaultEventsChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Publish はイベントを JSON で PUBLISH します。
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// Close は Redis クライアントを閉じます。
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

package worker

// dlq.go: Dead Letter Queue
// Sweep failures are parked here for manual inspection, one Redis list per
// source queue: dlq:{queue}. Nothing consumes them automatically; re-running
// the sweep for the day is always safe.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix    = "dlq:"
	QueueCierres = "cierres"
)

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	FailedAt string          `json:"failed_at"` // RFC 3339, UTC
	Attempts int             `json:"attempts"`
}

// DeadLetters receives failed jobs.
type DeadLetters interface {
	Send(ctx context.Context, entry DLQEntry) error
}

// RedisDLQ is the Redis-list DeadLetters.
type RedisDLQ struct {
	rdb *redis.Client
}

func NewRedisDLQ(rdb *redis.Client) *RedisDLQ { return &RedisDLQ{rdb: rdb} }

func (q *RedisDLQ) Send(ctx context.Context, entry DLQEntry) error {
	if entry.FailedAt == "" {
		entry.FailedAt = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := DLQPrefix + entry.Queue
	if err := q.rdb.LPush(ctx, key, data).Err(); err != nil {
		return err
	}
	log.Warn().
		Str("queue", entry.Queue).
		Str("job_type", entry.JobType).
		Str("reason", entry.Reason).
		Int("attempts", entry.Attempts).
		Msg("dlq: job moved to dead letter queue")
	return nil
}

// Length returns the number of parked entries of a queue, for monitoring.
func (q *RedisDLQ) Length(ctx context.Context, queue string) (int64, error) {
	return q.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

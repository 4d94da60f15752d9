// Package eventstream implements the pipeline event contract (spec §6):
// rag_retrieve.*, rag_rerank.*, rag_mmr.*, rag_compress.* in_progress/
// completed pairs, published to a transport callback and recorded
// durably, grounded on the teacher's internal/stream/redis_manager.go
// and memory_manager.go (there a per-session chat stream; here a
// per-job pipeline-stage event log).
package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one rag_<stage>.<phase> record.
type Event struct {
	Name      string         `json:"event"`
	JobID     string         `json:"jobId"`
	UserID    string         `json:"userId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Stage/phase name builders, matching the rag_<stage>.<phase> contract.
func InProgress(stage string) string { return fmt.Sprintf("rag_%s.in_progress", stage) }
func Completed(stage string) string  { return fmt.Sprintf("rag_%s.completed", stage) }

// Stream is the EventStream port: Publish is a best-effort, low-latency
// transport hook (e.g. SSE fan-out); RecordEvent durably persists the
// event with event/job_id/user_id/session_id stripped from the stored
// payload, since those travel as top-level fields already.
type Stream interface {
	Publish(ctx context.Context, e Event) error
	RecordEvent(ctx context.Context, e Event) error
}

func stripEnvelope(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case "event", "job_id", "user_id", "session_id":
			continue
		default:
			out[k] = v
		}
	}
	return out
}

// Memory is an in-process Stream, grounded on memory_manager.go's
// map-plus-mutex session store, repurposed here to key by job id and
// append an ordered event log rather than a single mutable stream.
type Memory struct {
	mu     sync.Mutex
	events map[string][]Event
	subs   []func(Event)
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string][]Event)}
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	subs := append([]func(Event){}, m.subs...)
	m.mu.Unlock()
	for _, s := range subs {
		s(e)
	}
	return nil
}

func (m *Memory) RecordEvent(_ context.Context, e Event) error {
	e.Payload = stripEnvelope(e.Payload)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.JobID] = append(m.events[e.JobID], e)
	return nil
}

// Subscribe registers a callback invoked synchronously on every Publish.
func (m *Memory) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Events returns the recorded event log for a job, in publish order.
func (m *Memory) Events(jobID string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events[jobID]))
	copy(out, m.events[jobID])
	return out
}

// Redis is a durable Stream backed by a Redis list per job, grounded on
// the teacher's RedisStreamManager (there a single JSON blob per
// session+request updated in place; here an append-only list since
// pipeline events are a log, not a mutable cursor).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	pubsub string
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "rag:events:"
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix, pubsub: prefix + "pubsub"}
}

func (r *Redis) key(jobID string) string {
	return r.prefix + jobID
}

func (r *Redis) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.pubsub, data).Err()
}

func (r *Redis) RecordEvent(ctx context.Context, e Event) error {
	e.Payload = stripEnvelope(e.Payload)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := r.key(e.JobID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Events reads back the durable event log for a job.
func (r *Redis) Events(ctx context.Context, jobID string) ([]Event, error) {
	raw, err := r.client.LRange(ctx, r.key(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, s := range raw {
		var e Event
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

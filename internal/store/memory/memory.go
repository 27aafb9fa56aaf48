package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/vishalm/LlamaBot/internal/store"
)

type MemoryStore struct {
	mu          sync.RWMutex
	threads     map[string]store.Thread
	checkpoints map[string][]store.Checkpoint
	events      map[string][]store.Event
	seq         map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		threads:     map[string]store.Thread{},
		checkpoints: map[string][]store.Checkpoint{},
		events:      map[string][]store.Event{},
		seq:         map[string]int64{},
	}
}

func (m *MemoryStore) SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if checkpoint.CreatedAt == "" {
		checkpoint.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	m.checkpoints[checkpoint.ThreadID] = append(m.checkpoints[checkpoint.ThreadID], cloneCheckpoint(checkpoint))

	thread, ok := m.threads[checkpoint.ThreadID]
	if !ok {
		thread = store.Thread{ID: checkpoint.ThreadID, CreatedAt: checkpoint.CreatedAt}
	}
	if thread.Title == "" {
		thread.Title = store.TitleFromState(checkpoint.State)
	}
	thread.UpdatedAt = checkpoint.CreatedAt
	m.threads[checkpoint.ThreadID] = thread
	return nil
}

func (m *MemoryStore) LatestCheckpoint(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	checkpoints := m.checkpoints[threadID]
	if len(checkpoints) == 0 {
		return nil, nil
	}
	latest := cloneCheckpoint(checkpoints[len(checkpoints)-1])
	return &latest, nil
}

func (m *MemoryStore) ListCheckpoints(ctx context.Context, threadID string, limit int) ([]store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	checkpoints := m.checkpoints[threadID]
	results := make([]store.Checkpoint, 0, len(checkpoints))
	for i := len(checkpoints) - 1; i >= 0; i-- {
		if limit > 0 && len(results) == limit {
			break
		}
		results = append(results, cloneCheckpoint(checkpoints[i]))
	}
	return results, nil
}

func (m *MemoryStore) ListThreads(ctx context.Context) ([]store.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Thread, 0, len(m.threads))
	for _, thread := range m.threads {
		results = append(results, thread)
	}
	sort.Slice(results, func(i, j int) bool {
		left, right := parseTime(results[i].UpdatedAt), parseTime(results[j].UpdatedAt)
		if left.Equal(right) {
			return results[i].ID < results[j].ID
		}
		return left.After(right)
	})
	return results, nil
}

func (m *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	delete(m.checkpoints, threadID)
	delete(m.events, threadID)
	delete(m.seq, threadID)
	return nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, threadID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[threadID] += 1
	return m.seq[threadID], nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Type = store.NormalizeEventType(event.Type)
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	event.Payload = clonePayload(event.Payload)
	m.events[event.ThreadID] = append(m.events[event.ThreadID], event)
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, threadID string, afterSeq int64) ([]store.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[threadID]
	filtered := []store.Event{}
	for _, event := range events {
		if event.Seq > afterSeq {
			event.Payload = clonePayload(event.Payload)
			filtered = append(filtered, event)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Seq < filtered[j].Seq })
	return filtered, nil
}

func cloneCheckpoint(checkpoint store.Checkpoint) store.Checkpoint {
	cloned := checkpoint
	cloned.Next = append([]string(nil), checkpoint.Next...)
	cloned.State = append(json.RawMessage(nil), checkpoint.State...)
	return cloned
}

// clonePayload deep-copies nested maps and slices so stored events never
// share memory with callers.
func clonePayload(payload map[string]any) map[string]any {
	cloned := make(map[string]any, len(payload))
	for key, value := range payload {
		cloned[key] = cloneValue(value)
	}
	return cloned
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return clonePayload(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

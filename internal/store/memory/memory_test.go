package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vishalm/LlamaBot/internal/store"
	"github.com/vishalm/LlamaBot/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestLatestCheckpointIsACopy(t *testing.T) {
	ctx := context.Background()
	mem := New()
	require.NoError(t, mem.SaveCheckpoint(ctx, store.Checkpoint{
		ThreadID: "thread-1",
		ID:       "01J00000000000000000000000",
		Next:     []string{"assistant"},
		State:    json.RawMessage(`{"messages":[]}`),
	}))

	latest, err := mem.LatestCheckpoint(ctx, "thread-1")
	require.NoError(t, err)
	latest.Next[0] = "mutated"
	latest.State[0] = '['

	again, err := mem.LatestCheckpoint(ctx, "thread-1")
	require.NoError(t, err)
	require.Equal(t, []string{"assistant"}, again.Next)
	require.JSONEq(t, `{"messages":[]}`, string(again.State))
}

func TestAppendEventNormalizesType(t *testing.T) {
	ctx := context.Background()
	mem := New()
	require.NoError(t, mem.AppendEvent(ctx, store.Event{ThreadID: "thread-1", Seq: 1, Type: " FINAL "}))

	mem.mu.RLock()
	defer mem.mu.RUnlock()
	require.Equal(t, "final", mem.events["thread-1"][0].Type)
	require.NotNil(t, mem.events["thread-1"][0].Payload)
}

func TestTitleKeptFromFirstCheckpoint(t *testing.T) {
	ctx := context.Background()
	mem := New()
	require.NoError(t, mem.SaveCheckpoint(ctx, store.Checkpoint{ThreadID: "t", ID: "1", State: json.RawMessage(`{"messages":[{"type":"human","content":"first"}]}`)}))
	require.NoError(t, mem.SaveCheckpoint(ctx, store.Checkpoint{ThreadID: "t", ID: "2", State: json.RawMessage(`{"messages":[{"type":"human","content":"second"}]}`)}))

	threads, err := mem.ListThreads(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", threads[0].Title)
}

func TestEventPayloadIsolated(t *testing.T) {
	ctx := context.Background()
	mem := New()
	payload := map[string]any{"type": "final", "messages": []any{map[string]any{"content": "hi"}}}
	require.NoError(t, mem.AppendEvent(ctx, store.Event{ThreadID: "thread-1", Seq: 1, Type: "final", Payload: payload}))

	payload["type"] = "mutated"
	events, err := mem.ListEvents(ctx, "thread-1", 0)
	require.NoError(t, err)
	require.Equal(t, "final", events[0].Payload["type"])

	events[0].Payload["type"] = "mutated"
	events[0].Payload["messages"].([]any)[0].(map[string]any)["content"] = "mutated"

	again, err := mem.ListEvents(ctx, "thread-1", 0)
	require.NoError(t, err)
	require.Equal(t, "final", again[0].Payload["type"])
	require.Equal(t, "hi", again[0].Payload["messages"].([]any)[0].(map[string]any)["content"])
}

// Package storetest holds behaviour tests shared by every store backend.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/vishalm/LlamaBot/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("LatestCheckpointMissing", func(t *testing.T) {
		st := newStore(t)
		latest, err := st.LatestCheckpoint(context.Background(), "nope")
		require.NoError(t, err)
		require.Nil(t, latest)
	})

	t.Run("CheckpointRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		first := checkpoint("thread-1", "", -1, "", []string{"route_initial_user_message"}, `{"messages":[{"id":"m1","type":"human","content":"Build me a landing page for my bakery please, with a menu"}]}`)
		second := checkpoint("thread-1", first.ID, 0, "route_initial_user_message", []string{"design_and_plan"}, `{"messages":[{"id":"m1","type":"human","content":"Build me a landing page for my bakery please, with a menu"}],"next":"design_and_plan"}`)
		require.NoError(t, st.SaveCheckpoint(ctx, first))
		require.NoError(t, st.SaveCheckpoint(ctx, second))

		latest, err := st.LatestCheckpoint(ctx, "thread-1")
		require.NoError(t, err)
		require.NotNil(t, latest)
		require.Equal(t, second.ID, latest.ID)
		require.Equal(t, first.ID, latest.ParentID)
		require.Equal(t, 0, latest.Step)
		require.Equal(t, "route_initial_user_message", latest.Node)
		require.Equal(t, []string{"design_and_plan"}, latest.Next)
		require.JSONEq(t, string(second.State), string(latest.State))

		all, err := st.ListCheckpoints(ctx, "thread-1", 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, second.ID, all[0].ID)
		require.Equal(t, -1, all[1].Step)

		limited, err := st.ListCheckpoints(ctx, "thread-1", 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
	})

	t.Run("ListThreadsNewestFirstWithTitle", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		base := time.Now().UTC()
		older := checkpoint("thread-a", "", -1, "", nil, `{"messages":[{"id":"m1","type":"human","content":"Build me a landing page for my bakery please, with a menu and prices"}]}`)
		older.CreatedAt = base.Add(-time.Minute).Format(time.RFC3339Nano)
		newer := checkpoint("thread-b", "", -1, "", nil, `{"messages":[{"id":"m2","type":"human","content":"hi"}]}`)
		newer.CreatedAt = base.Format(time.RFC3339Nano)
		require.NoError(t, st.SaveCheckpoint(ctx, older))
		require.NoError(t, st.SaveCheckpoint(ctx, newer))

		threads, err := st.ListThreads(ctx)
		require.NoError(t, err)
		require.Len(t, threads, 2)
		require.Equal(t, "thread-b", threads[0].ID)
		require.Equal(t, "hi", threads[0].Title)
		require.Equal(t, "thread-a", threads[1].ID)
		require.Equal(t, "Build me a landing page for my bakery please, with", threads[1].Title)
	})

	t.Run("ListThreadsMixedFractionalPrecision", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		older := checkpoint("older", "", -1, "", nil, `{"messages":[]}`)
		older.CreatedAt = "2026-01-01T00:00:05.1Z"
		newer := checkpoint("newer", "", -1, "", nil, `{"messages":[]}`)
		newer.CreatedAt = "2026-01-01T00:00:05.12Z"
		whole := checkpoint("whole", "", -1, "", nil, `{"messages":[]}`)
		whole.CreatedAt = "2026-01-01T00:00:05Z"
		require.NoError(t, st.SaveCheckpoint(ctx, whole))
		require.NoError(t, st.SaveCheckpoint(ctx, older))
		require.NoError(t, st.SaveCheckpoint(ctx, newer))

		threads, err := st.ListThreads(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(threads))
		for _, thread := range threads {
			ids = append(ids, thread.ID)
		}
		require.Equal(t, []string{"newer", "older", "whole"}, ids)
	})

	t.Run("EventsAfterSeq", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		for _, typ := range []string{"start", "node", "final"} {
			seq, err := st.NextSeq(ctx, "thread-1")
			require.NoError(t, err)
			require.NoError(t, st.AppendEvent(ctx, store.Event{
				ThreadID:  "thread-1",
				Seq:       seq,
				RequestID: "req-1",
				Type:      typ,
				Payload:   map[string]any{"type": typ},
			}))
		}

		all, err := st.ListEvents(ctx, "thread-1", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, int64(1), all[0].Seq)
		require.Equal(t, "start", all[0].Type)
		require.Equal(t, "req-1", all[0].RequestID)
		require.Equal(t, "final", all[2].Payload["type"])
		require.NotEmpty(t, all[0].Timestamp)

		after, err := st.ListEvents(ctx, "thread-1", 2)
		require.NoError(t, err)
		require.Len(t, after, 1)
		require.Equal(t, int64(3), after[0].Seq)
	})

	t.Run("NextSeqConcurrent", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		const workers = 8
		seen := make(chan int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seq, err := st.NextSeq(ctx, "thread-1")
				if err == nil {
					seen <- seq
				}
			}()
		}
		wg.Wait()
		close(seen)

		unique := map[int64]struct{}{}
		for seq := range seen {
			unique[seq] = struct{}{}
		}
		require.Len(t, unique, workers)
	})

	t.Run("DeleteThread", func(t *testing.T) {
		ctx := context.Background()
		st := newStore(t)

		require.NoError(t, st.SaveCheckpoint(ctx, checkpoint("thread-1", "", -1, "", nil, `{"messages":[]}`)))
		require.NoError(t, st.SaveCheckpoint(ctx, checkpoint("thread-2", "", -1, "", nil, `{"messages":[]}`)))
		seq, err := st.NextSeq(ctx, "thread-1")
		require.NoError(t, err)
		require.NoError(t, st.AppendEvent(ctx, store.Event{ThreadID: "thread-1", Seq: seq, Type: "start"}))

		require.NoError(t, st.DeleteThread(ctx, "thread-1"))

		latest, err := st.LatestCheckpoint(ctx, "thread-1")
		require.NoError(t, err)
		require.Nil(t, latest)
		events, err := st.ListEvents(ctx, "thread-1", 0)
		require.NoError(t, err)
		require.Empty(t, events)
		threads, err := st.ListThreads(ctx)
		require.NoError(t, err)
		require.Len(t, threads, 1)
		require.Equal(t, "thread-2", threads[0].ID)

		seq, err = st.NextSeq(ctx, "thread-1")
		require.NoError(t, err)
		require.Equal(t, int64(1), seq)
	})
}

func checkpoint(threadID, parentID string, step int, node string, next []string, state string) store.Checkpoint {
	if !json.Valid([]byte(state)) {
		panic(fmt.Sprintf("invalid state fixture: %s", state))
	}
	return store.Checkpoint{
		ThreadID:  threadID,
		ID:        ulid.Make().String(),
		ParentID:  parentID,
		Step:      step,
		Node:      node,
		Next:      next,
		State:     json.RawMessage(state),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

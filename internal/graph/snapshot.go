package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNoCheckpoint = errors.New("thread has no checkpoints")

// Snapshot is the latest state of a thread. It serializes as the array
// [values, next, config, metadata, created_at, parent_config].
type Snapshot struct {
	Values       State
	Next         []string
	Config       map[string]any
	Metadata     map[string]any
	CreatedAt    string
	ParentConfig map[string]any
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	next := s.Next
	if next == nil {
		next = []string{}
	}
	var parent any
	if s.ParentConfig != nil {
		parent = s.ParentConfig
	}
	return json.Marshal([]any{s.Values.normalized(), next, s.Config, s.Metadata, s.CreatedAt, parent})
}

// LoadSnapshot returns ErrNoCheckpoint when the thread has never run.
func LoadSnapshot(ctx context.Context, checkpointer Checkpointer, threadID string) (Snapshot, error) {
	latest, err := checkpointer.LatestCheckpoint(ctx, threadID)
	if err != nil {
		return Snapshot{}, err
	}
	if latest == nil {
		return Snapshot{}, ErrNoCheckpoint
	}
	var state State
	if err := json.Unmarshal(latest.State, &state); err != nil {
		return Snapshot{}, fmt.Errorf("decode checkpoint %s: %w", latest.ID, err)
	}
	source := "loop"
	if latest.Step < 0 {
		source = "input"
	}
	snapshot := Snapshot{
		Values:    state,
		Next:      latest.Next,
		Config:    checkpointConfig(threadID, latest.ID),
		Metadata:  map[string]any{"source": source, "step": latest.Step, "node": latest.Node},
		CreatedAt: latest.CreatedAt,
	}
	if latest.ParentID != "" {
		snapshot.ParentConfig = checkpointConfig(threadID, latest.ParentID)
	}
	return snapshot, nil
}

func checkpointConfig(threadID, checkpointID string) map[string]any {
	return map[string]any{
		"configurable": map[string]any{
			"thread_id":     threadID,
			"checkpoint_id": checkpointID,
		},
	}
}

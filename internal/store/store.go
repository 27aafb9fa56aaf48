package store

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const titleMaxRunes = 50

type Thread struct {
	ID        string
	Title     string
	CreatedAt string
	UpdatedAt string
}

// Checkpoint is a snapshot of a thread's graph state after one step. Step -1
// is the turn input; IDs are ULIDs so they sort in write order.
type Checkpoint struct {
	ThreadID  string
	ID        string
	ParentID  string
	Step      int
	Node      string
	Next      []string
	State     json.RawMessage
	CreatedAt string
}

type Event struct {
	ThreadID  string
	Seq       int64
	RequestID string
	Type      string
	Node      string
	Timestamp string
	Payload   map[string]any
}

type Store interface {
	SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error
	// LatestCheckpoint returns nil, nil when the thread has no checkpoints.
	LatestCheckpoint(ctx context.Context, threadID string) (*Checkpoint, error)
	// ListCheckpoints returns up to limit checkpoints, newest first. A
	// non-positive limit returns all of them.
	ListCheckpoints(ctx context.Context, threadID string, limit int) ([]Checkpoint, error)
	ListThreads(ctx context.Context) ([]Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	NextSeq(ctx context.Context, threadID string) (int64, error)
	AppendEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, threadID string, afterSeq int64) ([]Event, error)
}

// TitleFromState derives a thread title from the first human message of a
// serialized graph state.
func TitleFromState(state json.RawMessage) string {
	var decoded struct {
		Messages []struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(state, &decoded); err != nil {
		return ""
	}
	for _, msg := range decoded.Messages {
		if msg.Type != "human" {
			continue
		}
		title := strings.Join(strings.Fields(msg.Content), " ")
		if utf8.RuneCountInString(title) > titleMaxRunes {
			title = string([]rune(title)[:titleMaxRunes])
		}
		return title
	}
	return ""
}

func NormalizeEventType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/vishalm/LlamaBot/internal/agents"
	"github.com/vishalm/LlamaBot/internal/chat"
	"github.com/vishalm/LlamaBot/internal/config"
	"github.com/vishalm/LlamaBot/internal/events"
	"github.com/vishalm/LlamaBot/internal/store"
	"github.com/vishalm/LlamaBot/internal/workflows"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) error {
	args := m.Called(ctx, checkpoint)
	return args.Error(0)
}

func (m *MockStore) LatestCheckpoint(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	args := m.Called(ctx, threadID)
	if value := args.Get(0); value != nil {
		return value.(*store.Checkpoint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListCheckpoints(ctx context.Context, threadID string, limit int) ([]store.Checkpoint, error) {
	args := m.Called(ctx, threadID, limit)
	var result []store.Checkpoint
	if value := args.Get(0); value != nil {
		result = value.([]store.Checkpoint)
	}
	return result, args.Error(1)
}

func (m *MockStore) ListThreads(ctx context.Context) ([]store.Thread, error) {
	args := m.Called(ctx)
	var result []store.Thread
	if value := args.Get(0); value != nil {
		result = value.([]store.Thread)
	}
	return result, args.Error(1)
}

func (m *MockStore) DeleteThread(ctx context.Context, threadID string) error {
	args := m.Called(ctx, threadID)
	return args.Error(0)
}

func (m *MockStore) NextSeq(ctx context.Context, threadID string) (int64, error) {
	args := m.Called(ctx, threadID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) AppendEvent(ctx context.Context, event store.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStore) ListEvents(ctx context.Context, threadID string, afterSeq int64) ([]store.Event, error) {
	args := m.Called(ctx, threadID, afterSeq)
	var result []store.Event
	if value := args.Get(0); value != nil {
		result = value.([]store.Event)
	}
	return result, args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.Event) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, threadID string) <-chan events.Event {
	args := m.Called(ctx, threadID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.Event); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.Event); ok {
			return ch
		}
	}
	return nil
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartTurn(ctx context.Context, input workflows.TurnInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func (m *MockWorkflowService) CancelThread(ctx context.Context, threadID string) error {
	args := m.Called(ctx, threadID)
	return args.Error(0)
}

func (m *MockWorkflowService) CheckHealth(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockModelLister struct {
	mock.Mock
}

func (m *MockModelLister) ListModels(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var result []string
	if value := args.Get(0); value != nil {
		result = value.([]string)
	}
	return result, args.Error(1)
}

func (m *MockModelLister) BaseURL() string {
	return m.Called().String(0)
}

// stubTurner emits the given update chunks, then returns messages or err.
type stubTurner struct {
	chunks   []string
	messages []chat.Message
	err      error
	turns    []agents.Turn
}

func (s *stubTurner) Run(ctx context.Context, turn agents.Turn, emit func(events.Event)) ([]chat.Message, error) {
	s.turns = append(s.turns, turn)
	for _, chunk := range s.chunks {
		emit(events.Event{Type: events.TypeUpdate, RequestID: turn.RequestID, ThreadID: turn.ThreadID, Value: chunk})
	}
	return s.messages, s.err
}

func newTestServer(t *testing.T, store store.Store, broker Broker, workflows WorkflowService, cfg config.Config, opts ...Option) *httptest.Server {
	t.Helper()
	server := NewServer(store, broker, workflows, cfg, opts...)
	return httptest.NewServer(server.Router())
}

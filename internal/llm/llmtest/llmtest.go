// Package llmtest provides a testify mock of llm.Provider.
package llmtest

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/vishalm/LlamaBot/internal/llm"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Chat(ctx context.Context, req llm.Request, onDelta llm.StreamFunc) (llm.Message, error) {
	args := m.Called(ctx, req, onDelta)
	return args.Get(0).(llm.Message), args.Error(1)
}

// PromptContains matches a request whose first message contains substr.
func PromptContains(substr string) any {
	return mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, substr)
	})
}

// Stream returns a Run func that feeds deltas through the request's
// StreamFunc, as a streaming provider would.
func Stream(deltas ...string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		onDelta, _ := args.Get(2).(llm.StreamFunc)
		if onDelta == nil {
			return
		}
		for _, delta := range deltas {
			onDelta(delta)
		}
	}
}

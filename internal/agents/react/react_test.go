package react

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vishalm/LlamaBot/internal/chat"
	"github.com/vishalm/LlamaBot/internal/graph"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/llm/llmtest"
	"github.com/vishalm/LlamaBot/internal/page"
	"github.com/vishalm/LlamaBot/internal/prompts"
	"github.com/vishalm/LlamaBot/internal/tools"
)

func setup(t *testing.T, provider llm.Provider, opts ...graph.Option) (*graph.Runnable, *page.Store) {
	t.Helper()
	dir := t.TempDir()
	pages := page.NewStore(page.Paths{
		HTML: filepath.Join(dir, "page.html"),
		CSS:  filepath.Join(dir, "assets", "page.css"),
		JS:   filepath.Join(dir, "assets", "page.js"),
	})
	runnable, err := Build(Config{
		Provider: provider,
		Prompts:  prompts.MustLoad(),
		Tools:    tools.NewRegistry(tools.PageTools(pages)...),
		CSSPath:  "assets/page.css",
		JSPath:   "assets/page.js",
	}, opts...)
	require.NoError(t, err)
	return runnable, pages
}

func toolCall(id, name, args string) llm.Message {
	return llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func TestAssistantCallsToolsThenAnswers(t *testing.T) {
	provider := &llmtest.MockProvider{}
	provider.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) == 2
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(llm.Request)
			assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
			assert.Contains(t, req.Messages[0].Content, "assets/page.css")
			assert.Len(t, req.Tools, 4)
		}).
		Return(toolCall("call_1", "write_html", `{"html_code":"<h1>Hi</h1>"}`), nil).Once()
	provider.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) == 4
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(llm.Request)
			assert.Equal(t, llm.RoleTool, req.Messages[3].Role)
			assert.Equal(t, "call_1", req.Messages[3].ToolCallID)
			assert.Equal(t, "HTML code written to page.html", req.Messages[3].Content)
		}).
		Return(llm.Message{Role: llm.RoleAssistant, Content: "Done."}, nil).Once()

	runnable, pages := setup(t, provider)
	final, err := runnable.Stream(context.Background(), "t1", graph.Input{
		Messages: []chat.Message{chat.NewHuman("make a heading")},
	}, nil)
	require.NoError(t, err)

	require.Len(t, final.Messages, 4)
	assert.Equal(t, chat.TypeTool, final.Messages[2].Type)
	assert.Equal(t, "write_html", final.Messages[2].Name)
	assert.Equal(t, "Done.", final.Messages[3].Content)

	written, err := os.ReadFile(pages.Paths().HTML)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1>", string(written))
	provider.AssertExpectations(t)
}

func TestInvalidToolArgumentsAbortRun(t *testing.T) {
	provider := &llmtest.MockProvider{}
	provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(toolCall("call_1", "write_css", `{"html_code":"x"}`), nil).Once()

	runnable, pages := setup(t, provider)
	_, err := runnable.Stream(context.Background(), "t1", graph.Input{Messages: []chat.Message{chat.NewHuman("style it")}}, nil)
	require.ErrorIs(t, err, tools.ErrInvalidArguments)

	_, statErr := os.Stat(pages.Paths().CSS)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnknownToolAbortsRun(t *testing.T) {
	provider := &llmtest.MockProvider{}
	provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(toolCall("call_1", "delete_everything", `{}`), nil).Once()

	runnable, _ := setup(t, provider)
	_, err := runnable.Stream(context.Background(), "t1", graph.Input{Messages: []chat.Message{chat.NewHuman("go")}}, nil)
	require.ErrorIs(t, err, tools.ErrUnknownTool)
}

func TestRecursionLimitStopsEndlessToolLoop(t *testing.T) {
	provider := &llmtest.MockProvider{}
	provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(toolCall("call_n", "read_page", `{}`), nil)

	runnable, _ := setup(t, provider, graph.WithRecursionLimit(6))
	_, err := runnable.Stream(context.Background(), "t1", graph.Input{Messages: []chat.Message{chat.NewHuman("loop")}}, nil)
	require.ErrorIs(t, err, graph.ErrRecursionLimit)
	provider.AssertNumberOfCalls(t, "Chat", 3)
}

func TestAnswerWithoutToolsEndsImmediately(t *testing.T) {
	provider := &llmtest.MockProvider{}
	provider.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Run(llmtest.Stream("Hel", "lo")).
		Return(llm.Message{Role: llm.RoleAssistant, Content: "Hello"}, nil).Once()

	runnable, _ := setup(t, provider)
	var tokens []string
	final, err := runnable.Stream(context.Background(), "t1", graph.Input{Messages: []chat.Message{chat.NewHuman("hi")}}, func(event graph.Event) {
		if event.Kind == graph.KindMessages {
			tokens = append(tokens, event.Content)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
	assert.Equal(t, "Hello", final.Messages[len(final.Messages)-1].Content)
}

// Package react is the tool-calling page agent: the assistant node calls the
// model with the page tools, and the tools node runs whatever it asked for
// until it answers without tool calls.
package react

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/chat"
	"github.com/vishalm/LlamaBot/internal/graph"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/prompts"
	"github.com/vishalm/LlamaBot/internal/tools"
)

const Name = "react_agent"

const (
	NodeAssistant = "assistant"
	NodeTools     = "tools"
)

type Config struct {
	Provider llm.Provider
	Prompts  *prompts.Library
	Tools    *tools.Registry
	CSSPath  string
	JSPath   string
	Logger   *zap.Logger
}

type agent struct {
	provider llm.Provider
	system   string
	tools    *tools.Registry
	logger   *zap.Logger
}

func Build(cfg Config, opts ...graph.Option) (*graph.Runnable, error) {
	if cfg.Provider == nil || cfg.Prompts == nil || cfg.Tools == nil {
		return nil, fmt.Errorf("%s: provider, prompts and tools are required", Name)
	}
	system, err := cfg.Prompts.Render(prompts.ReactSystem, prompts.Vars{CSSPath: cfg.CSSPath, JSPath: cfg.JSPath})
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &agent{provider: cfg.Provider, system: system, tools: cfg.Tools, logger: logger}
	return graph.New().
		AddNode(NodeAssistant, a.assistant).
		AddNode(NodeTools, a.runTools).
		SetEntryPoint(NodeAssistant).
		AddConditionalEdge(NodeAssistant, route).
		AddEdge(NodeTools, NodeAssistant).
		Compile(opts...)
}

func (a *agent) assistant(ctx context.Context, state graph.State, out graph.Emitter) (graph.Update, error) {
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: a.system}}, chat.ToLLM(state.Messages)...)
	reply, err := a.provider.Chat(ctx, llm.Request{
		Messages: messages,
		Tools:    a.tools.Specs(),
	}, out.Message)
	if err != nil {
		return graph.Update{}, err
	}
	return graph.Update{Messages: []chat.Message{chat.FromLLM(reply)}}, nil
}

func (a *agent) runTools(ctx context.Context, state graph.State, out graph.Emitter) (graph.Update, error) {
	calls := pendingCalls(state)
	results := make([]chat.Message, 0, len(calls))
	for _, call := range calls {
		a.logger.Info("invoking tool", zap.String("tool", call.Name), zap.String("tool_call_id", call.ID))
		result, err := a.tools.Invoke(ctx, call.Name, call.Args)
		if err != nil {
			return graph.Update{}, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		results = append(results, chat.NewTool(call.Name, call.ID, result))
	}
	return graph.Update{Messages: results}, nil
}

func route(state graph.State) string {
	if len(pendingCalls(state)) > 0 {
		return NodeTools
	}
	return graph.END
}

func pendingCalls(state graph.State) []chat.ToolCall {
	if len(state.Messages) == 0 {
		return nil
	}
	last := state.Messages[len(state.Messages)-1]
	if last.Type != chat.TypeAI {
		return nil
	}
	return last.ToolCalls
}

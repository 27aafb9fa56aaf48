// Package writehtml is the plan-then-generate page agent: a classifier
// routes each message either to a conversational reply or to a design plan
// followed by full HTML generation.
package writehtml

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/chat"
	"github.com/vishalm/LlamaBot/internal/graph"
	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/prompts"
)

const Name = "write_html_agent"

const (
	NodeRoute   = "route_initial_user_message"
	NodeRespond = "respond_naturally"
	NodePlan    = "design_and_plan"
	NodeWrite   = "write_html_code"
)

type PageWriter interface {
	WriteHTML(content string) error
}

type Config struct {
	Provider llm.Provider
	Prompts  *prompts.Library
	Pages    PageWriter
	Logger   *zap.Logger
}

type agent struct {
	classifier *Classifier
	planner    *Planner
	generator  *Generator
	responder  *Responder
	pages      PageWriter
	logger     *zap.Logger
}

func Build(cfg Config, opts ...graph.Option) (*graph.Runnable, error) {
	if cfg.Provider == nil || cfg.Prompts == nil || cfg.Pages == nil {
		return nil, fmt.Errorf("%s: provider, prompts and pages are required", Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &agent{
		classifier: NewClassifier(cfg.Provider, cfg.Prompts, logger),
		planner:    NewPlanner(cfg.Provider, cfg.Prompts),
		generator:  NewGenerator(cfg.Provider, cfg.Prompts),
		responder:  NewResponder(cfg.Provider, cfg.Prompts),
		pages:      cfg.Pages,
		logger:     logger,
	}
	return graph.New().
		AddNode(NodeRoute, a.route).
		AddNode(NodeRespond, a.respond).
		AddNode(NodePlan, a.plan).
		AddNode(NodeWrite, a.write).
		SetEntryPoint(NodeRoute).
		AddConditionalEdge(NodeRoute, func(state graph.State) string { return state.Next }).
		AddEdge(NodeRespond, graph.END).
		AddEdge(NodePlan, NodeWrite).
		AddEdge(NodeWrite, graph.END).
		Compile(opts...)
}

func (a *agent) route(ctx context.Context, state graph.State, out graph.Emitter) (graph.Update, error) {
	intent, err := a.classifier.classify(ctx, state.InitialUserMessage, state.ExistingHTMLContent, out.Message)
	if err != nil {
		return graph.Update{}, err
	}
	if intent == IntentWriteCode {
		return graph.Update{Next: NodePlan}, nil
	}
	return graph.Update{Next: NodeRespond}, nil
}

func (a *agent) respond(ctx context.Context, state graph.State, out graph.Emitter) (graph.Update, error) {
	reply, err := a.responder.respond(ctx, state.InitialUserMessage, state.ExistingHTMLContent, out.Message)
	if err != nil {
		return graph.Update{}, err
	}
	return graph.Update{Messages: []chat.Message{chat.NewAI(reply)}}, nil
}

func (a *agent) plan(ctx context.Context, state graph.State, out graph.Emitter) (graph.Update, error) {
	plan, err := a.planner.plan(ctx, state.InitialUserMessage, state.ExistingHTMLContent, out.Message)
	if err != nil {
		return graph.Update{}, err
	}
	return graph.Update{DesignPlan: plan}, nil
}

func (a *agent) write(ctx context.Context, state graph.State, out graph.Emitter) (graph.Update, error) {
	html, err := a.generator.generate(ctx, state.InitialUserMessage, state.ExistingHTMLContent, state.DesignPlan, out.Message)
	if err != nil {
		return graph.Update{}, err
	}
	if err := a.pages.WriteHTML(html); err != nil {
		a.logger.Error("failed to write generated page", zap.Error(err))
		return graph.Update{}, fmt.Errorf("write page: %w", err)
	}
	return graph.Update{
		FinalHTMLContent: html,
		Messages:         []chat.Message{chat.NewAI(html)},
	}, nil
}

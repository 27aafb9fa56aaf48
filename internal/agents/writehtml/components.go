package writehtml

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/llm"
	"github.com/vishalm/LlamaBot/internal/prompts"
)

type Intent string

const (
	IntentWriteCode        Intent = "WRITE_CODE"
	IntentRespondNaturally Intent = "RESPOND_NATURALLY"
)

// Classifier decides whether a message asks for page code or for a reply.
type Classifier struct {
	provider llm.Provider
	prompts  *prompts.Library
	logger   *zap.Logger
}

func NewClassifier(provider llm.Provider, library *prompts.Library, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{provider: provider, prompts: library, logger: logger}
}

// Classify maps any label other than the known ones to
// IntentRespondNaturally and logs it.
func (c *Classifier) Classify(ctx context.Context, userMessage, existingHTML string) (Intent, error) {
	return c.classify(ctx, userMessage, existingHTML, nil)
}

func (c *Classifier) classify(ctx context.Context, userMessage, existingHTML string, onDelta llm.StreamFunc) (Intent, error) {
	reply, err := complete(ctx, c.provider, c.prompts, prompts.DetermineUserIntent, prompts.Vars{
		UserMessage:         userMessage,
		ExistingHTMLContent: existingHTML,
	}, onDelta)
	if err != nil {
		return "", err
	}
	label := strings.TrimSpace(reply)
	switch Intent(label) {
	case IntentWriteCode, IntentRespondNaturally:
		return Intent(label), nil
	default:
		c.logger.Warn("unrecognized intent label, responding naturally", zap.String("label", label))
		return IntentRespondNaturally, nil
	}
}

type Planner struct {
	provider llm.Provider
	prompts  *prompts.Library
}

func NewPlanner(provider llm.Provider, library *prompts.Library) *Planner {
	return &Planner{provider: provider, prompts: library}
}

func (p *Planner) Plan(ctx context.Context, userMessage, existingHTML string) (string, error) {
	return p.plan(ctx, userMessage, existingHTML, nil)
}

func (p *Planner) plan(ctx context.Context, userMessage, existingHTML string, onDelta llm.StreamFunc) (string, error) {
	return complete(ctx, p.provider, p.prompts, prompts.DesignPlanning, prompts.Vars{
		UserMessage:         userMessage,
		ExistingHTMLContent: existingHTML,
	}, onDelta)
}

type Generator struct {
	provider llm.Provider
	prompts  *prompts.Library
}

func NewGenerator(provider llm.Provider, library *prompts.Library) *Generator {
	return &Generator{provider: provider, prompts: library}
}

// Generate returns the model output untouched.
func (g *Generator) Generate(ctx context.Context, userMessage, existingHTML, designPlan string) (string, error) {
	return g.generate(ctx, userMessage, existingHTML, designPlan, nil)
}

func (g *Generator) generate(ctx context.Context, userMessage, existingHTML, designPlan string, onDelta llm.StreamFunc) (string, error) {
	return complete(ctx, g.provider, g.prompts, prompts.AfterPlanningGenerateHTML, prompts.Vars{
		UserMessage:         userMessage,
		ExistingHTMLContent: existingHTML,
		DesignPlan:          designPlan,
	}, onDelta)
}

type Responder struct {
	provider llm.Provider
	prompts  *prompts.Library
}

func NewResponder(provider llm.Provider, library *prompts.Library) *Responder {
	return &Responder{provider: provider, prompts: library}
}

func (r *Responder) Respond(ctx context.Context, userMessage, existingHTML string) (string, error) {
	return r.respond(ctx, userMessage, existingHTML, nil)
}

func (r *Responder) respond(ctx context.Context, userMessage, existingHTML string, onDelta llm.StreamFunc) (string, error) {
	return complete(ctx, r.provider, r.prompts, prompts.RespondToUser, prompts.Vars{
		UserMessage:         userMessage,
		ExistingHTMLContent: existingHTML,
	}, onDelta)
}

func complete(ctx context.Context, provider llm.Provider, library *prompts.Library, name string, vars prompts.Vars, onDelta llm.StreamFunc) (string, error) {
	prompt, err := library.Render(name, vars)
	if err != nil {
		return "", err
	}
	reply, err := provider.Chat(ctx, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	}, onDelta)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return reply.Content, nil
}

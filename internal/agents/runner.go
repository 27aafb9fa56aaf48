package agents

import (
	"context"
	"fmt"

	"github.com/vishalm/LlamaBot/internal/chat"
	"github.com/vishalm/LlamaBot/internal/events"
	"github.com/vishalm/LlamaBot/internal/graph"
)

type Turn struct {
	RequestID string `json:"request_id"`
	ThreadID  string `json:"thread_id"`
	Agent     string `json:"agent"`
	Message   string `json:"message"`
}

type PageReader interface {
	ReadHTML() (string, error)
}

// Runner executes one turn and translates graph progress into stream
// events: tokens become update events and finished nodes become node events.
type Runner struct {
	agents *Registry
	pages  PageReader
	model  string
}

func NewRunner(agents *Registry, pages PageReader, model string) *Runner {
	return &Runner{agents: agents, pages: pages, model: model}
}

func (r *Runner) Model() string {
	return r.model
}

// Run returns the thread's messages after the turn. The start and terminal
// events are left to the caller.
func (r *Runner) Run(ctx context.Context, turn Turn, emit func(events.Event)) ([]chat.Message, error) {
	runnable, err := r.agents.Get(turn.Agent)
	if err != nil {
		return nil, err
	}
	existing, err := r.pages.ReadHTML()
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if emit == nil {
		emit = func(events.Event) {}
	}

	final, err := runnable.Stream(ctx, turn.ThreadID, graph.Input{
		Messages:            []chat.Message{chat.NewHuman(turn.Message)},
		InitialUserMessage:  turn.Message,
		ExistingHTMLContent: existing,
	}, func(event graph.Event) {
		switch event.Kind {
		case graph.KindMessages:
			emit(events.Event{
				Type:      events.TypeUpdate,
				RequestID: turn.RequestID,
				ThreadID:  turn.ThreadID,
				Node:      event.Node,
				Value:     event.Content,
				Model:     r.model,
			})
		case graph.KindUpdates:
			emit(events.Event{
				Type:      events.TypeNode,
				RequestID: turn.RequestID,
				ThreadID:  turn.ThreadID,
				Node:      event.Node,
			})
		}
	})
	return final.Messages, err
}

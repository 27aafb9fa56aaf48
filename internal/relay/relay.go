package relay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vishalm/LlamaBot/internal/agents"
	"github.com/vishalm/LlamaBot/internal/chat"
	"github.com/vishalm/LlamaBot/internal/events"
)

// Stream pairs the NDJSON writer with the journal.
type Stream struct {
	out     *Writer
	journal *Journal
}

func NewStream(out io.Writer, journal *Journal) *Stream {
	return &Stream{out: NewWriter(out), journal: journal}
}

// Send journals the event and writes it. Out-of-order events are rejected
// before anything is recorded.
func (s *Stream) Send(ctx context.Context, event events.Event) error {
	if err := s.out.Check(event); err != nil {
		return err
	}
	recorded := event
	if s.journal != nil {
		recorded, _ = s.journal.Record(ctx, event)
	}
	return s.out.Write(recorded)
}

// Forward writes an event that was journaled elsewhere.
func (s *Stream) Forward(event events.Event) error {
	return s.out.Write(event)
}

func (s *Stream) Done() bool {
	return s.out.Done()
}

// Turner runs a turn in process.
type Turner interface {
	Run(ctx context.Context, turn agents.Turn, emit func(events.Event)) ([]chat.Message, error)
}

func StartEvent(turn agents.Turn, model string) events.Event {
	return events.Event{Type: events.TypeStart, RequestID: turn.RequestID, ThreadID: turn.ThreadID, Model: model}
}

func FinalEvent(turn agents.Turn, model string, messages []chat.Message) events.Event {
	if messages == nil {
		messages = []chat.Message{}
	}
	return events.Event{
		Type:      events.TypeFinal,
		RequestID: turn.RequestID,
		ThreadID:  turn.ThreadID,
		Node:      "final",
		Value:     "final",
		Messages:  messages,
		Model:     model,
	}
}

func ErrorEvent(turn agents.Turn, err error) events.Event {
	return events.Event{Type: events.TypeError, RequestID: turn.RequestID, ThreadID: turn.ThreadID, Error: err.Error()}
}

// RunInline runs the turn in this process and streams it. Turn failures are
// reported as an error event, not returned.
func RunInline(ctx context.Context, stream *Stream, turner Turner, turn agents.Turn, model string) error {
	if err := stream.Send(ctx, StartEvent(turn, model)); err != nil {
		return err
	}
	messages, err := turner.Run(ctx, turn, func(event events.Event) {
		_ = stream.Send(ctx, event)
	})
	if err != nil {
		return stream.Send(ctx, ErrorEvent(turn, err))
	}
	return stream.Send(ctx, FinalEvent(turn, model, messages))
}

// RunRemote emits start, calls dispatch, then forwards this request's
// updates and terminal event from sub. sub must be subscribed before the
// call so no event is missed.
func RunRemote(ctx context.Context, stream *Stream, sub <-chan events.Event, turn agents.Turn, model string, timeout time.Duration, dispatch func(context.Context) error) error {
	if err := stream.Send(ctx, StartEvent(turn, model)); err != nil {
		return err
	}
	if err := dispatch(ctx); err != nil {
		return stream.Send(ctx, ErrorEvent(turn, fmt.Errorf("start turn: %w", err)))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return stream.Send(ctx, ErrorEvent(turn, fmt.Errorf("turn did not finish within %s", timeout)))
		case event, ok := <-sub:
			if !ok {
				return ctx.Err()
			}
			if event.RequestID != turn.RequestID {
				continue
			}
			switch {
			case event.Terminal():
				return stream.Forward(event)
			case event.Transient():
				if err := stream.Forward(event); err != nil {
					return err
				}
			}
		}
	}
}

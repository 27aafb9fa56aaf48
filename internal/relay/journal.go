package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/events"
	"github.com/vishalm/LlamaBot/internal/store"
)

// Journal persists non-transient events and publishes every event to the
// broker.
type Journal struct {
	store  store.Store
	broker Publisher
	logger *zap.Logger
}

type Publisher interface {
	Publish(event events.Event)
}

func NewJournal(st store.Store, broker Publisher, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{store: st, broker: broker, logger: logger}
}

// Record returns the event with its sequence number and timestamp set. The
// event is published even when persisting it fails.
func (j *Journal) Record(ctx context.Context, event events.Event) (events.Event, error) {
	event.Type = events.NormalizeType(event.Type)
	if event.Ts == "" {
		event.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	var persistErr error
	if !event.Transient() && j.store != nil {
		persistErr = j.persist(ctx, &event)
		if persistErr != nil {
			j.logger.Warn("failed to persist thread event",
				zap.String("thread_id", event.ThreadID),
				zap.String("type", event.Type),
				zap.Error(persistErr))
		}
	}
	if j.broker != nil {
		j.broker.Publish(event)
	}
	return event, persistErr
}

func (j *Journal) persist(ctx context.Context, event *events.Event) error {
	seq, err := j.store.NextSeq(ctx, event.ThreadID)
	if err != nil {
		return fmt.Errorf("allocate seq: %w", err)
	}
	event.Seq = seq
	payload, err := toPayload(*event)
	if err != nil {
		return err
	}
	return j.store.AppendEvent(ctx, store.Event{
		ThreadID:  event.ThreadID,
		Seq:       seq,
		RequestID: event.RequestID,
		Type:      event.Type,
		Node:      event.Node,
		Timestamp: event.Ts,
		Payload:   payload,
	})
}

func toPayload(event events.Event) (map[string]any, error) {
	encoded, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	payload := map[string]any{}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return payload, nil
}

// FromRecord rebuilds a stream event from its stored form.
func FromRecord(record store.Event) (events.Event, error) {
	var event events.Event
	encoded, err := json.Marshal(record.Payload)
	if err != nil {
		return event, err
	}
	if err := json.Unmarshal(encoded, &event); err != nil {
		return event, err
	}
	event.Type = record.Type
	event.Seq = record.Seq
	event.ThreadID = record.ThreadID
	event.RequestID = record.RequestID
	event.Node = record.Node
	event.Ts = record.Timestamp
	return event, nil
}

// Package events defines the stream events of a chat turn and the
// in-process broker that fans them out to thread subscribers.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vishalm/LlamaBot/internal/chat"
)

const (
	TypeStart  = "start"
	TypeUpdate = "update"
	TypeNode   = "node"
	TypeError  = "error"
	TypeFinal  = "final"
)

const (
	subscriberBuffer = 64
	terminalWait     = time.Second
)

type Event struct {
	Type      string         `json:"type"`
	Seq       int64          `json:"seq,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Node      string         `json:"node,omitempty"`
	Value     string         `json:"value,omitempty"`
	Error     string         `json:"error,omitempty"`
	Messages  []chat.Message `json:"messages,omitempty"`
	Model     string         `json:"model,omitempty"`
	Ts        string         `json:"ts,omitempty"`
}

// Transient events are token updates: published live, never persisted.
func (e Event) Transient() bool {
	return NormalizeType(e.Type) == TypeUpdate
}

func (e Event) Terminal() bool {
	t := NormalizeType(e.Type)
	return t == TypeFinal || t == TypeError
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

type subscriber struct {
	ch   chan Event
	done <-chan struct{}
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[*subscriber]struct{}{},
	}
}

// Subscribe returns a channel of the thread's events. The channel is closed
// once ctx is done.
func (b *Broker) Subscribe(ctx context.Context, threadID string) <-chan Event {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer), done: ctx.Done()}

	b.mu.Lock()
	if b.subscribers[threadID] == nil {
		b.subscribers[threadID] = map[*subscriber]struct{}{}
	}
	b.subscribers[threadID][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[threadID] != nil {
			delete(b.subscribers[threadID], sub)
			if len(b.subscribers[threadID]) == 0 {
				delete(b.subscribers, threadID)
			}
		}
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch
}

// Publish delivers the event to every subscriber of its thread. A full
// subscriber misses non-terminal events; terminal events wait up to a second.
// Sends happen under the read lock so a channel is never written after close.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers[event.ThreadID] {
		if !event.Terminal() {
			select {
			case sub.ch <- event:
			default:
			}
			continue
		}
		timer := time.NewTimer(terminalWait)
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-timer.C:
		}
		timer.Stop()
	}
}

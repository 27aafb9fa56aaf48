// Package relay streams a chat turn to the client as NDJSON and journals
// every event it emits.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/vishalm/LlamaBot/internal/events"
)

const ContentType = "application/x-ndjson"

var ErrOutOfOrder = errors.New("stream event out of order")

const (
	phaseIdle = iota
	phaseStarted
	phaseDone
)

// Writer enforces start, then updates, then exactly one terminal event.
// Node events are accepted but never written.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	flusher http.Flusher
	phase   int
}

func NewWriter(out io.Writer) *Writer {
	flusher, _ := out.(http.Flusher)
	return &Writer{out: out, flusher: flusher}
}

// Check reports whether event may be written next without writing it.
func (w *Writer) Check(event events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.advance(event)
	return err
}

func (w *Writer) Write(event events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := w.advance(event)
	if err != nil {
		return err
	}
	if events.NormalizeType(event.Type) == events.TypeNode {
		return nil
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	w.phase = next
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Done reports whether the terminal event has been written.
func (w *Writer) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase == phaseDone
}

func (w *Writer) advance(event events.Event) (int, error) {
	eventType := events.NormalizeType(event.Type)
	switch {
	case w.phase == phaseIdle && eventType == events.TypeStart:
		return phaseStarted, nil
	case w.phase == phaseStarted && (eventType == events.TypeUpdate || eventType == events.TypeNode):
		return phaseStarted, nil
	case w.phase == phaseStarted && event.Terminal():
		return phaseDone, nil
	default:
		return w.phase, fmt.Errorf("%w: %q after phase %d", ErrOutOfOrder, event.Type, w.phase)
	}
}

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receiveEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before receive")
		}
		return ev
	case <-timer.C:
		t.Fatal("timed out waiting for event")
	}

	return Event{}
}

func waitForClosed(t *testing.T, ch <-chan Event) {
	t.Helper()

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestEventKinds(t *testing.T) {
	if !(Event{Type: "update"}).Transient() {
		t.Fatal("expected update to be transient")
	}
	if (Event{Type: "node"}).Transient() {
		t.Fatal("expected node event to be persisted")
	}
	for _, typ := range []string{"final", " Error "} {
		if !(Event{Type: typ}).Terminal() {
			t.Fatalf("expected %q to be terminal", typ)
		}
	}
	if (Event{Type: "start"}).Terminal() {
		t.Fatal("expected start to be non-terminal")
	}
}

func TestSubscribe_Single(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "thread-1")

	b.mu.RLock()
	count := len(b.subscribers["thread-1"])
	b.mu.RUnlock()
	if count != 1 {
		t.Fatalf("expected 1 subscriber, got %d", count)
	}

	cancel()
	waitForClosed(t, ch)

	b.mu.RLock()
	_, exists := b.subscribers["thread-1"]
	b.mu.RUnlock()
	if exists {
		t.Fatal("subscriber not removed")
	}
}

func TestSubscribe_DifferentThreads(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := b.Subscribe(ctx, "thread-1")
	ch2 := b.Subscribe(ctx, "thread-2")

	b.Publish(Event{ThreadID: "thread-2", Type: TypeStart, RequestID: "req-2"})
	received := receiveEvent(t, ch2)
	if received.RequestID != "req-2" {
		t.Fatalf("unexpected event: %+v", received)
	}
	if len(ch1) != 0 {
		t.Fatalf("expected no events for thread-1, got %d", len(ch1))
	}

	cancel()
	waitForClosed(t, ch1)
	waitForClosed(t, ch2)
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := NewBroker()
	b.Publish(Event{ThreadID: "thread-1", Type: TypeFinal})
}

func TestPublish_DropsUpdatesWhenFull(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "thread-1")
	for i := 0; i < subscriberBuffer; i++ {
		b.Publish(Event{ThreadID: "thread-1", Type: TypeUpdate, Seq: int64(i + 1)})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected full buffer, got %d", len(ch))
	}
	b.Publish(Event{ThreadID: "thread-1", Type: TypeUpdate, Seq: 999})
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected dropped event, got %d", len(ch))
	}

	first := receiveEvent(t, ch)
	if first.Seq != 1 {
		t.Fatalf("expected seq 1 first, got %d", first.Seq)
	}

	cancel()
	waitForClosed(t, ch)
}

func TestPublish_TerminalWaitsForRoom(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "thread-1")
	for i := 0; i < subscriberBuffer; i++ {
		b.Publish(Event{ThreadID: "thread-1", Type: TypeUpdate})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Publish(Event{ThreadID: "thread-1", Type: TypeFinal, RequestID: "req-1"})
	}()

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < subscriberBuffer; i++ {
		receiveEvent(t, ch)
	}
	final := receiveEvent(t, ch)
	if final.Type != TypeFinal {
		t.Fatalf("expected final event, got %+v", final)
	}
	<-done

	cancel()
	waitForClosed(t, ch)
}

func TestPublish_TerminalGivesUpOnCancelledSubscriber(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "thread-1")
	for i := 0; i < subscriberBuffer; i++ {
		b.Publish(Event{ThreadID: "thread-1", Type: TypeUpdate})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Publish(Event{ThreadID: "thread-1", Type: TypeError, Error: "boom"})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * terminalWait):
		t.Fatal("publish did not return")
	}
	waitForClosed(t, ch)
}

func TestPublish_ConcurrentWithUnsubscribe(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	chans := make([]<-chan Event, 0, 8)
	for i := 0; i < 8; i++ {
		chans = append(chans, b.Subscribe(ctx, "thread-1"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			b.Publish(Event{ThreadID: "thread-1", Type: TypeUpdate, Seq: int64(100 + seq)})
		}(i)
	}
	cancel()
	wg.Wait()

	for _, ch := range chans {
		waitForClosed(t, ch)
	}

	b.mu.RLock()
	count := len(b.subscribers)
	b.mu.RUnlock()
	if count != 0 {
		t.Fatalf("expected no subscribers, got %d", count)
	}
}

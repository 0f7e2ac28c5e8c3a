package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/taskboard/internal/events"
)

type recordingNotifier struct {
	mu      sync.Mutex
	got     []events.EventType
	release chan struct{}
}

func (r *recordingNotifier) Notify(_ context.Context, event events.Event) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, event.Type)
	return nil
}

func (r *recordingNotifier) seen() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.got...)
}

func TestNotificationWorkerDeliversInOrder(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := events.NewInMemoryDispatcher()
	w := NewNotificationWorker(notifier, 8, nil)
	w.Subscribe(dispatcher)
	w.Start()

	ctx := context.Background()
	sent := []events.EventType{events.EventTicketCreated, events.EventTicketClaimed, events.EventFriendRequestSent}
	for _, typ := range sent {
		if err := dispatcher.Publish(ctx, events.Event{Type: typ}); err != nil {
			t.Fatalf("Publish(%s) error: %v", typ, err)
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	got := notifier.seen()
	if len(got) != len(sent) {
		t.Fatalf("delivered %v, want %v", got, sent)
	}
	for i := range sent {
		if got[i] != sent[i] {
			t.Errorf("delivered[%d] = %s, want %s", i, got[i], sent[i])
		}
	}
}

func TestNotificationWorkerDropsWhenFull(t *testing.T) {
	notifier := &recordingNotifier{release: make(chan struct{})}
	w := NewNotificationWorker(notifier, 1, nil)
	ctx := context.Background()

	// Not started: the queue holds one event and the rest are dropped.
	if err := w.enqueue(ctx, events.Event{Type: events.EventTicketCreated}); err != nil {
		t.Fatalf("first enqueue error: %v", err)
	}
	if err := w.enqueue(ctx, events.Event{Type: events.EventTicketClaimed}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second enqueue error = %v, want ErrQueueFull", err)
	}
	if w.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", w.Dropped())
	}

	w.Start()
	close(notifier.release)
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if got := notifier.seen(); len(got) != 1 || got[0] != events.EventTicketCreated {
		t.Errorf("delivered %v, want only the queued event", got)
	}
	if err := w.enqueue(ctx, events.Event{Type: events.EventTicketCreated}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("enqueue after Stop error = %v, want ErrQueueFull", err)
	}
}

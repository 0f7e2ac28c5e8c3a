package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/events"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 5 * time.Second
)

// ErrQueueFull is returned to the dispatcher when an event is dropped.
var ErrQueueFull = errors.New("notification queue full")

// Notifier delivers a single event.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification delivery off the request path. Events
// are queued by the dispatcher and delivered by one goroutine, so a slow
// channel never runs while a ticket or pair lock is held.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	queue    chan events.Event
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	dropped  atomic.Int64
}

// NewNotificationWorker builds a worker with a bounded queue.
func NewNotificationWorker(notifier Notifier, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan events.Event, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe attaches the worker to every event the dispatcher publishes.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(w.enqueue)
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case <-w.stop:
		return ErrQueueFull
	default:
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

// Start launches the delivery loop.
func (w *NotificationWorker) Start() {
	go w.loop()
}

func (w *NotificationWorker) loop() {
	defer close(w.done)
	for {
		select {
		case event := <-w.queue:
			w.deliver(event)
		case <-w.stop:
			w.drain()
			return
		}
	}
}

// drain delivers what was queued before Stop.
func (w *NotificationWorker) drain() {
	for {
		select {
		case event := <-w.queue:
			w.deliver(event)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := w.notifier.Notify(ctx, event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// Stop flushes the queue and waits for the loop to exit or ctx to expire.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		if n := w.dropped.Load(); n > 0 {
			w.logger.Warn("notifications dropped", zap.Int64("count", n))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (w *NotificationWorker) Dropped() int64 {
	return w.dropped.Load()
}

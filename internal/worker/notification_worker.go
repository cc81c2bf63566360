package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/events"
)

// Notifier handles one event off the request path.
type Notifier interface {
	EventTypes() []events.EventType
	Notify(ctx context.Context, event events.Event) error
}

// NotificationWorker queues lead events from the dispatcher and hands them to
// a Notifier on a background goroutine. A full queue drops the event.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	queue    chan events.Event
	wg       sync.WaitGroup
	once     sync.Once
}

// StartNotificationWorker subscribes to the notifier's events and starts draining them.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger, size int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 64
	}
	w := &NotificationWorker{notifier: notifier, logger: logger, queue: make(chan events.Event, size)}
	for _, eventType := range notifier.EventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}

	w.wg.Add(1)
	go w.run(context.WithoutCancel(ctx))
	return w
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) (err error) {
	defer func() {
		if recover() != nil {
			w.logger.Warn("notification dropped after stop", zap.String("event_type", string(event.Type)))
			err = nil
		}
	}()
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("subject_id", event.SubjectID))
	}
	return nil
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.notifier.Notify(ctx, event); err != nil {
			w.logger.Warn("notification failed",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

// Stop closes the queue and waits for queued events to be handled.
func (w *NotificationWorker) Stop() {
	w.once.Do(func() { close(w.queue) })
	w.wg.Wait()
}

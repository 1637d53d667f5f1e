package workers

import (
	"context"
	"time"

	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/log"
	"github.com/merkleship/merkleship/pkg/queue"
	"github.com/merkleship/merkleship/pkg/repositories"
)

type AuditLogWorker struct {
	repository repositories.Repository
	eventQueue queue.Queue
	interval   time.Duration
}

type NewAuditLogWorkerOptions struct {
	Repository repositories.Repository
	EventQueue queue.Queue
	Interval   time.Duration
}

// NewAuditLogWorker creates a new AuditLogWorker.
// The worker periodically drains the event queue and appends the events
// to the repository's audit log.
func NewAuditLogWorker(opts NewAuditLogWorkerOptions) *AuditLogWorker {
	return &AuditLogWorker{
		repository: opts.Repository,
		eventQueue: opts.EventQueue,
		interval:   opts.Interval,
	}
}

func (w *AuditLogWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Drain(ctx)
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain writes all pending events to the repository.
func (w *AuditLogWorker) Drain(ctx context.Context) {
	for _, item := range w.eventQueue.ReadAllMessages() {
		event, ok := item.(*events.Event)
		if !ok {
			log.Error("Failed to cast queue item to event")
			continue
		}
		if err := w.repository.SaveEvent(ctx, event); err != nil {
			log.Error("Failed to save event %s: %v", event.ID, err)
		}
	}
}

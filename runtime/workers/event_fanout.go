package workers

import (
	"collab-live/contract"
	"collab-live/domain/event"
	"context"
	"log/slog"
)

// EventFanoutWorker drains the hub's event channel and routes each event.
//
// A single instance runs per hub, so events reach every connection in the
// order they were published. There is no retry and no acknowledgement.
type EventFanoutWorker struct {
	log    *slog.Logger
	events <-chan event.DomainEvent
	router contract.IRouter
}

func NewEventFanoutWorker(log *slog.Logger, events <-chan event.DomainEvent, router contract.IRouter) *EventFanoutWorker {
	return &EventFanoutWorker{log: log, events: events, router: router}
}

func (w *EventFanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout routes one event to every connection in its scope.
func (w *EventFanoutWorker) Fanout(ctx context.Context, evt event.DomainEvent) {
	delivered := w.router.Publish(ctx, evt)
	w.log.Debug("Event routed", "type", evt.Type, "scope", evt.Scope.Kind,
		"room_id", evt.Scope.Room, "delivered", delivered)
}

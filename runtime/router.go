package runtime

import (
	"collab-live/contract"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"time"
)

// Router resolves the connections in an event's scope and hands the event
// to each of their sinks. Delivery is fire-and-forget: a failing sink is
// logged and counted, the others are still served.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
	rooms    contract.IRoomDirectory
	metrics  *observability.Metrics
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, rooms contract.IRoomDirectory,
	metrics *observability.Metrics) *Router {
	return &Router{log: log, registry: registry, rooms: rooms, metrics: metrics}
}

// Publish returns the number of sinks that accepted the event.
// An empty or unknown room delivers to nobody and is not an error.
func (r *Router) Publish(ctx context.Context, evt event.DomainEvent) int {
	start := time.Now()
	defer func() { r.metrics.ObserveFanout(time.Since(start)) }()

	delivered := 0
	for _, connID := range r.targets(evt) {
		sink, ok := r.registry.Sink(connID)
		if !ok {
			continue
		}
		if err := sink.Consume(ctx, evt); err != nil {
			r.dropped(connID, evt, err)
			continue
		}
		delivered++
		r.metrics.IncDelivered(string(evt.Type))
	}
	return delivered
}

func (r *Router) targets(evt event.DomainEvent) []domain.ConnectionID {
	if evt.Recipients != nil {
		return evt.Recipients
	}
	scope := evt.Scope
	switch scope.Kind {
	case event.RoomScope:
		return r.rooms.MembersOf(scope.Room)
	case event.GlobalScope:
		return r.registry.All()
	case event.IdentityScope:
		if connID, ok := r.registry.Lookup(scope.Identity); ok {
			return []domain.ConnectionID{connID}
		}
		r.log.Debug("Identity not reachable live", "identity", scope.Identity)
		return nil
	default:
		r.log.Warn("Scope is not routable", "kind", scope.Kind)
		return nil
	}
}

func (r *Router) dropped(connID domain.ConnectionID, evt event.DomainEvent, err error) {
	reason := "closed"
	switch {
	case stderrors.Is(err, errors.ErrQueueFull):
		reason = "queue_full"
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	}
	r.metrics.IncDropped(reason)
	r.log.Debug("Event dropped for connection",
		"connection_id", connID, "type", evt.Type, "reason", reason, "error", err)
}

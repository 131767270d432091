// Package runtime owns the live layer: connection registry, room directory
// and event routing. It contains no business rules.
package runtime

import (
	"collab-live/contract"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/observability"
	"collab-live/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Hub is the single process-wide coordinator. It owns the registry and the
// room directory, serializes every lifecycle step and feeds a bounded event
// channel drained by one fanout worker.
type Hub struct {
	mu         sync.Mutex
	log        *slog.Logger
	registry   *Registry
	rooms      *RoomDirectory
	router     *Router
	supervisor contract.ISupervisor
	events     chan event.DomainEvent
	metrics    *observability.Metrics
	workers    []contract.Worker
}

func NewHub(log *slog.Logger, supervisor contract.ISupervisor, metrics *observability.Metrics, bufferSize int) *Hub {
	registry := NewRegistry()
	rooms := NewRoomDirectory()
	return &Hub{
		log:        log,
		registry:   registry,
		rooms:      rooms,
		router:     NewRouter(log, registry, rooms, metrics),
		supervisor: supervisor,
		events:     make(chan event.DomainEvent, bufferSize),
		metrics:    metrics,
	}
}

// Add registers extra workers started alongside the fanout worker.
func (h *Hub) Add(worker ...contract.Worker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workers = append(h.workers, worker...)
}

// Events exposes the event channel for capacity sampling.
func (h *Hub) Events() chan event.DomainEvent { return h.events }

// Connect registers a connection and publishes the new presence set.
func (h *Hub) Connect(conn domain.Connection, sink contract.EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.Register(conn, sink)
	h.log.Info("Connection registered", "connection_id", conn.ID,
		"identity", conn.Identity, "anonymous", conn.Identity.IsAnonymous())
	h.publishPresence()
}

// Disconnect unregisters the connection and purges it from every room.
// Calling it twice is a no-op; presence is only republished on a change.
func (h *Hub) Disconnect(connID domain.ConnectionID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := h.registry.Unregister(connID)
	left := h.rooms.Purge(connID)
	h.metrics.SetActiveRooms(h.rooms.Len())
	if !removed {
		return false
	}
	h.log.Info("Connection unregistered", "connection_id", connID, "rooms_left", len(left))
	h.publishPresence()
	return true
}

// Join subscribes a registered connection to a room. Joining twice is harmless.
func (h *Hub) Join(connID domain.ConnectionID, roomID domain.RoomID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check(connID, roomID); err != nil {
		return err
	}
	if h.rooms.Join(roomID, connID) {
		h.log.Debug("Connection joined room", "connection_id", connID, "room_id", roomID)
		h.metrics.SetActiveRooms(h.rooms.Len())
	}
	return nil
}

// Leave is a no-op for a room the connection is not in.
func (h *Hub) Leave(connID domain.ConnectionID, roomID domain.RoomID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check(connID, roomID); err != nil {
		return err
	}
	if h.rooms.Leave(roomID, connID) {
		h.log.Debug("Connection left room", "connection_id", connID, "room_id", roomID)
		h.metrics.SetActiveRooms(h.rooms.Len())
	}
	return nil
}

func (h *Hub) check(connID domain.ConnectionID, roomID domain.RoomID) error {
	if _, ok := h.registry.Sink(connID); !ok {
		return errors.ErrUnknownConnection
	}
	if roomID == "" {
		return fmt.Errorf("%w: empty room", errors.ErrInvalidInput)
	}
	return nil
}

// NotifyRoom publishes an event to the connections in the room right now.
// A connection joining before the fanout worker drains the event does not
// receive it.
func (h *Hub) NotifyRoom(_ context.Context, roomID domain.RoomID, t event.Type, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms.MembersOf(roomID)
	return h.enqueue(event.New(t, event.InRoom(roomID), payload).To(members))
}

// NotifyIdentity publishes an event to the identity's active connection.
// An offline identity receives nothing and the call still succeeds.
func (h *Hub) NotifyIdentity(_ context.Context, identity domain.IdentityID, t event.Type, payload any) error {
	return h.enqueue(event.New(t, event.ToIdentity(identity), payload))
}

func (h *Hub) Presence() []domain.IdentityID {
	return h.registry.Presence()
}

func (h *Hub) MembersOf(roomID domain.RoomID) []domain.ConnectionID {
	return h.rooms.MembersOf(roomID)
}

// publishPresence must be called with h.mu held so presence snapshots are
// queued in the same order as the registry changes producing them.
func (h *Hub) publishPresence() {
	presence := h.registry.Presence()
	h.metrics.SetConnections(h.registry.Len())
	h.metrics.SetOnline(len(presence))
	if err := h.enqueue(event.New(event.PresenceType, event.Global(), presence)); err != nil {
		h.log.Warn("Presence update dropped", "error", err)
	}
}

// enqueue never blocks the caller.
func (h *Hub) enqueue(evt event.DomainEvent) error {
	select {
	case h.events <- evt:
		h.metrics.IncPublished(string(evt.Type))
		return nil
	default:
		h.metrics.IncDropped("hub_saturated")
		h.log.Warn("Hub event channel full, dropping event", "type", evt.Type)
		return errors.ErrHubSaturated
	}
}

// Start registers the fanout worker and the extra workers on the supervisor
// and blocks until the supervisor stops.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.supervisor.Add(workers.NewEventFanoutWorker(h.log, h.events, h.router))
	h.supervisor.Add(h.workers...)
	h.mu.Unlock()

	h.log.Info("Starting hub and all supervised workers")
	h.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers. Queued events are discarded.
func (h *Hub) Stop() {
	h.log.Info("Requesting hub shutdown")
	h.supervisor.Stop()
}

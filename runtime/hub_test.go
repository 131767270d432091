package runtime

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/runtime/workers"
	"collab-live/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, bufferSize int) *Hub {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	hub := NewHub(log, workers.NewSupervisor(log, 0), nil, bufferSize)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func receive(t *testing.T, s *sink.ConnectionSink) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-s.Outbound:
		return evt
	case <-time.After(time.Second):
		t.Fatalf("no event received by %s", s.ID)
		return event.DomainEvent{}
	}
}

func TestHub_Connect_BroadcastsPresence(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, 16)
	s1, s2 := sink.NewConnectionSink("c1", 8), sink.NewConnectionSink("c2", 8)

	// When U1 then U2 connect
	hub.Connect(connection("c1", "U1", time.Now()), s1)
	req.Equal([]domain.IdentityID{"U1"}, receive(t, s1).Payload)
	hub.Connect(connection("c2", "U2", time.Now()), s2)

	// Then both receive the full online set
	req.Equal([]domain.IdentityID{"U1", "U2"}, receive(t, s1).Payload)
	evt := receive(t, s2)
	req.Equal(event.PresenceType, evt.Type)
	req.Equal(event.GlobalScope, evt.Scope.Kind)
	req.Equal([]domain.IdentityID{"U1", "U2"}, evt.Payload)

	// When U1 disconnects, U2 sees presence shrink
	req.True(hub.Disconnect("c1"))
	req.Equal([]domain.IdentityID{"U2"}, receive(t, s2).Payload)
}

func TestHub_Disconnect_PurgesRoomsExactlyOnce(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, 16)
	s := sink.NewConnectionSink("c1", 8)

	// Given C joined R1 and R2
	hub.Connect(connection("c1", "U1", time.Now()), s)
	req.NoError(hub.Join("c1", "R1"))
	req.NoError(hub.Join("c1", "R2"))

	// When it disconnects twice
	req.True(hub.Disconnect("c1"))
	req.False(hub.Disconnect("c1"))

	// Then no room keeps it and presence is empty
	req.Empty(hub.MembersOf("R1"))
	req.Empty(hub.MembersOf("R2"))
	req.Empty(hub.Presence())
}

func TestHub_Join_RequiresRegisteredConnection(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, 4)

	req.ErrorIs(hub.Join("ghost", "R"), errors.ErrUnknownConnection)
	req.ErrorIs(hub.Leave("ghost", "R"), errors.ErrUnknownConnection)

	hub.Connect(connection("c1", "U1", time.Now()), sink.NewConnectionSink("c1", 4))
	req.ErrorIs(hub.Join("c1", ""), errors.ErrInvalidInput)
	req.NoError(hub.Leave("c1", "never-joined"))
}

func TestHub_NotifyRoom_PreservesOrderPerConnection(t *testing.T) {
	req := require.New(t)
	hub := startHub(t, 16)
	s := sink.NewConnectionSink("c1", 16)
	hub.Connect(connection("c1", "U1", time.Now()), s)
	receive(t, s) // presence
	req.NoError(hub.Join("c1", "proj-9"))

	ctx := context.Background()
	types := []event.Type{event.TaskAddedType, event.TaskUpdatedType, event.MessageReceivedType, event.FileUploadedType}
	for _, typ := range types {
		req.NoError(hub.NotifyRoom(ctx, "proj-9", typ, nil))
	}

	for _, typ := range types {
		req.Equal(typ, receive(t, s).Type)
	}
}

func TestHub_NotifyRoom_SaturatedChannel(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	// Given a hub whose worker is not running and a single slot
	hub := NewHub(log, workers.NewSupervisor(log, 0), nil, 1)
	ctx := context.Background()

	req.NoError(hub.NotifyRoom(ctx, "R", event.TaskAddedType, nil))

	// Then the next notification is refused without blocking
	req.ErrorIs(hub.NotifyRoom(ctx, "R", event.TaskAddedType, nil), errors.ErrHubSaturated)
}

func TestHub_NotifyRoom_ResolvesMembersAtPublishTime(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	// Given a hub whose fanout worker is not draining yet, and C1 in proj-9
	hub := NewHub(log, workers.NewSupervisor(log, 0), nil, 16)
	s1, s2 := sink.NewConnectionSink("c1", 8), sink.NewConnectionSink("c2", 8)
	hub.Connect(connection("c1", "U1", time.Now()), s1)
	req.NoError(hub.Join("c1", "proj-9"))

	// When a task is published, then C2 joins before the event is routed
	req.NoError(hub.NotifyRoom(context.Background(), "proj-9", event.TaskAddedType, domain.Task{ID: "t1"}))
	hub.Connect(connection("c2", "U2", time.Now()), s2)
	req.NoError(hub.Join("c2", "proj-9"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Then C1 receives the task between its two presence updates
	req.Equal(event.PresenceType, receive(t, s1).Type)
	req.Equal(event.TaskAddedType, receive(t, s1).Type)
	req.Equal(event.PresenceType, receive(t, s1).Type)

	// And C2 only receives the presence published after it connected
	req.Equal(event.PresenceType, receive(t, s2).Type)
	req.Empty(s2.Outbound)
}

package sink

import (
	"collab-live/domain/event"
	"collab-live/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume_KeepsOrder(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("c1", 3)
	ctx := context.Background()

	// When three events are consumed
	for _, typ := range []event.Type{event.TaskAddedType, event.TaskUpdatedType, event.FileUploadedType} {
		req.NoError(s.Consume(ctx, event.New(typ, event.InRoom("p1"), nil)))
	}

	// Then they come out in the same order
	req.Equal(event.TaskAddedType, (<-s.Outbound).Type)
	req.Equal(event.TaskUpdatedType, (<-s.Outbound).Type)
	req.Equal(event.FileUploadedType, (<-s.Outbound).Type)
}

func TestConnectionSink_Consume_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("c1", 1)
	ctx := context.Background()

	// Given a queue already full
	req.NoError(s.Consume(ctx, event.New(event.TaskAddedType, event.InRoom("p1"), nil)))

	// When another event arrives
	err := s.Consume(ctx, event.New(event.TaskUpdatedType, event.InRoom("p1"), nil))

	// Then it is dropped without blocking
	req.ErrorIs(err, errors.ErrQueueFull)
	req.Len(s.Outbound, 1)
}

func TestConnectionSink_Close_IsIdempotent(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("c1", 1)

	s.Close()
	s.Close()

	err := s.Consume(context.Background(), event.New(event.PresenceType, event.Global(), nil))
	req.ErrorIs(err, errors.ErrConnectionClosed)
	select {
	case <-s.Done():
	default:
		req.Fail("Done should be closed")
	}
}

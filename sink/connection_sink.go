package sink

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"context"
	"sync"
)

// ConnectionSink is the bounded outbound queue of one live connection.
// The router fills it, the transport writer drains Outbound.
type ConnectionSink struct {
	ID       domain.ConnectionID
	Outbound chan event.DomainEvent
	closed   chan struct{}
	once     sync.Once
}

func NewConnectionSink(id domain.ConnectionID, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		ID:       id,
		Outbound: make(chan event.DomainEvent, bufferSize),
		closed:   make(chan struct{}),
	}
}

// Consume is called by the fanout worker and never waits on the peer.
// A full queue drops the event for this connection only.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case s.Outbound <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrQueueFull
	}
}

// Close stops accepting events. Outbound is left open so a concurrent
// Consume can never panic on a closed channel.
func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

// Done is closed once the sink has been closed.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.closed
}

// Package bridge turns committed writes into live notifications.
//
// A write runs first. Only when it succeeds is an event handed to the
// notifier, and a failing notification never fails or undoes the write.
// Clients that miss the event recover by fetching the resource.
package bridge

import (
	"collab-live/contract"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/observability"
	"context"
	"log/slog"
)

type Bridge struct {
	notifier contract.Notifier
	log      *slog.Logger
	metrics  *observability.Metrics
}

func New(notifier contract.Notifier, log *slog.Logger, metrics *observability.Metrics) *Bridge {
	return &Bridge{notifier: notifier, log: log, metrics: metrics}
}

// Commit runs write and, on success, notifies the room with the written value.
func Commit[T any](ctx context.Context, b *Bridge, roomID domain.RoomID, t event.Type,
	write func(ctx context.Context) (T, error)) (T, error) {
	return CommitAs(ctx, b, roomID, t, write, func(v T) any { return v })
}

// CommitAs is Commit with a payload derived from the written value.
func CommitAs[T any](ctx context.Context, b *Bridge, roomID domain.RoomID, t event.Type,
	write func(ctx context.Context) (T, error), payload func(T) any) (T, error) {
	value, err := write(ctx)
	if err != nil {
		return value, err
	}
	if err := b.notifier.NotifyRoom(ctx, roomID, t, payload(value)); err != nil {
		b.failed(t, "room_id", string(roomID), err)
	}
	return value, nil
}

// Direct runs write and, on success, notifies the identity's active connection.
func Direct[T any](ctx context.Context, b *Bridge, identity domain.IdentityID, t event.Type,
	write func(ctx context.Context) (T, error)) (T, error) {
	value, err := write(ctx)
	if err != nil {
		return value, err
	}
	if err := b.notifier.NotifyIdentity(ctx, identity, t, value); err != nil {
		b.failed(t, "identity", string(identity), err)
	}
	return value, nil
}

func (b *Bridge) failed(t event.Type, key, target string, err error) {
	b.metrics.IncNotifyFailure(string(t))
	b.log.Warn("Notification failed after commit", "type", t, key, target, "error", err)
}

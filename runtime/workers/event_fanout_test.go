package workers

import (
	"collab-live/domain/event"
	"collab-live/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanoutWorker_RoutesInOrder(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	mockRouter := mocks.NewMockIRouter(ctrl)

	events := make(chan event.DomainEvent, 3)
	worker := NewEventFanoutWorker(log, events, mockRouter)

	var seen []event.Type
	done := make(chan struct{})
	// Given the router accepts every event
	mockRouter.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.DomainEvent) int {
			seen = append(seen, evt.Type)
			if len(seen) == 3 {
				close(done)
			}
			return 1
		}).Times(3)

	// When three events are queued
	events <- event.New(event.TaskAddedType, event.InRoom("p1"), nil)
	events <- event.New(event.TaskUpdatedType, event.InRoom("p1"), nil)
	events <- event.New(event.FileUploadedType, event.InRoom("p1"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// Then they are routed in publication order
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Events were not routed in time")
	}
	req.Equal([]event.Type{event.TaskAddedType, event.TaskUpdatedType, event.FileUploadedType}, seen)
}

func TestEventFanoutWorker_StopsOnCancel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	worker := NewEventFanoutWorker(slog.Default(), make(chan event.DomainEvent), mocks.NewMockIRouter(ctrl))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.NoError(worker.Run(ctx))
}

package services

import (
	"collab-live/bridge"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/mocks"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDirectMessageService_Send(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockDirectMessageRepository(ctrl)
	moderator := mocks.NewMockModerator(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	service := NewDirectMessageService(log, repository, moderator, bridge.New(notifier, log, nil), 100)

	// Given a receiver, online or not
	moderator.EXPECT().Censor("hello").Return("hello", nil)
	repository.EXPECT().SaveDirectMessage(gomock.Any()).Return(nil)
	notifier.EXPECT().NotifyIdentity(ctx, domain.IdentityID("u2"), event.DirectMessageType, gomock.Any()).Return(nil)

	// When u1 writes to u2
	dm, err := service.Send(ctx, "u1", "u2", DirectMessageRequest{Content: " hello "})

	// Then the message is persisted and pushed to u2
	req.NoError(err)
	req.Equal("hello", dm.Content)
	req.Equal(domain.IdentityID("u1"), dm.SenderID)
	req.Equal(domain.IdentityID("u2"), dm.ReceiverID)
}

func TestDirectMessageService_Send_Rejected(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	service := NewDirectMessageService(log, mocks.NewMockDirectMessageRepository(ctrl),
		mocks.NewMockModerator(ctrl), bridge.New(notifier, log, nil), 100)

	_, err := service.Send(context.Background(), "u1", "bad id", DirectMessageRequest{Content: "hello"})
	req.ErrorIs(err, errors.ErrInvalidInput)

	_, err = service.Send(context.Background(), "u1", "u2", DirectMessageRequest{})
	req.ErrorIs(err, errors.ErrInvalidInput)
}

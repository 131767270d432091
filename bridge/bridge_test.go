package bridge

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/mocks"
	"collab-live/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCommit_PublishesAfterWrite(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	b := New(notifier, logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	task := domain.Task{ID: "t1", ProjectID: "proj-9", Title: "Design spec", Version: 1}

	// Given a successful write
	var written bool
	notifier.EXPECT().
		NotifyRoom(gomock.Any(), domain.RoomID("proj-9"), event.TaskAddedType, task).
		DoAndReturn(func(context.Context, domain.RoomID, event.Type, any) error {
			req.True(written, "event published before the write committed")
			return nil
		})

	// When it is committed
	got, err := Commit(context.Background(), b, "proj-9", event.TaskAddedType,
		func(context.Context) (domain.Task, error) {
			written = true
			return task, nil
		})

	// Then the room is notified with the written task
	req.NoError(err)
	req.Equal(task, got)
}

func TestCommit_FailedWritePublishesNothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	b := New(notifier, logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	boom := stderrors.New("disk full")

	// Given a write that fails
	notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// When it is committed
	_, err := Commit(context.Background(), b, "proj-9", event.TaskAddedType,
		func(context.Context) (domain.Task, error) { return domain.Task{}, boom })

	// Then the write error is returned
	req.ErrorIs(err, boom)
}

func TestCommit_NotifyFailureIsSwallowed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	metrics := observability.New(prometheus.NewRegistry())
	b := New(notifier, logs.GetLoggerFromLevel(slog.LevelDebug), metrics)

	// Given a saturated hub
	notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.ErrHubSaturated)

	// When a file is committed
	file, err := Commit(context.Background(), b, "proj-9", event.FileUploadedType,
		func(context.Context) (domain.File, error) { return domain.File{ID: "f1"}, nil })

	// Then the write still succeeds and the failure is counted
	req.NoError(err)
	req.Equal("f1", file.ID)
	req.Equal(1.0, testutil.ToFloat64(metrics.NotifyFailures.WithLabelValues(string(event.FileUploadedType))))
}

func TestCommitAs_DerivedPayload(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	b := New(notifier, logs.GetLoggerFromLevel(slog.LevelDebug), nil)

	notifier.EXPECT().NotifyRoom(gomock.Any(), domain.RoomID("proj-9"), event.TeamMemberRemovedType,
		event.MemberRemoved{ProjectID: "proj-9", UserID: "u2"}).Return(nil)

	_, err := CommitAs(context.Background(), b, "proj-9", event.TeamMemberRemovedType,
		func(context.Context) (domain.IdentityID, error) { return "u2", nil },
		func(id domain.IdentityID) any { return event.MemberRemoved{ProjectID: "proj-9", UserID: id} })
	req.NoError(err)
}

func TestDirect_NotifiesIdentity(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	b := New(notifier, logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	dm := domain.DirectMessage{ID: "d1", SenderID: "u1", ReceiverID: "u2", Content: "hi"}

	notifier.EXPECT().NotifyIdentity(gomock.Any(), domain.IdentityID("u2"), event.DirectMessageType, dm).Return(nil)

	got, err := Direct(context.Background(), b, "u2", event.DirectMessageType,
		func(context.Context) (domain.DirectMessage, error) { return dm, nil })
	req.NoError(err)
	req.Equal(dm, got)
}

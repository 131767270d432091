package services

import (
	"collab-live/bridge"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"collab-live/mocks"
	"collab-live/moderation"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	service  *ProjectService
	projects *mocks.MockProjectRepository
	blobs    *mocks.MockBlobStore
	index    *mocks.MockMessageIndex
	notifier *mocks.MockNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	f := fixture{
		projects: mocks.NewMockProjectRepository(ctrl),
		blobs:    mocks.NewMockBlobStore(ctrl),
		index:    mocks.NewMockMessageIndex(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)
	f.service = NewProjectService(log, f.projects, f.blobs, f.index, moderator,
		bridge.New(f.notifier, log, nil), ProjectServiceConfig{MaxContentLength: 200, MaxUploadBytes: 64})
	return f
}

// project9 is owned by u1, with u2 as a plain member and u3 as an admin.
func project9() domain.Project {
	return domain.Project{
		ID:    "proj-9",
		Title: "Launch",
		Owner: "u1",
		Members: []domain.Member{
			{ID: "u1", ProjectID: "proj-9", Role: domain.RoleAdmin},
			{ID: "u2", ProjectID: "proj-9", Role: domain.RoleMember},
			{ID: "u3", ProjectID: "proj-9", Role: domain.RoleAdmin},
		},
	}
}

func TestProjectService_CreateProject(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	var saved domain.Project
	f.projects.EXPECT().CreateProject(gomock.Any()).DoAndReturn(func(p domain.Project) error {
		saved = p
		return nil
	})

	project, err := f.service.CreateProject(context.Background(), "u1", CreateProjectRequest{Title: " Launch "})
	req.NoError(err)
	req.Equal(saved, project)
	req.Equal("Launch", project.Title)
	req.Equal(domain.IdentityID("u1"), project.Owner)
	req.Len(project.Members, 1)
	req.Equal(domain.RoleAdmin, project.Members[0].Role)

	_, err = f.service.CreateProject(context.Background(), "u1", CreateProjectRequest{})
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestProjectService_AddTask(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given a member of proj-9
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.projects.EXPECT().SaveTask(gomock.Any()).Return(nil)

	// Then the room hears about the committed task
	var published domain.Task
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.TaskAddedType, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.RoomID, _ event.Type, payload any) error {
			published = payload.(domain.Task)
			return nil
		})

	// When a task is added
	task, err := f.service.AddTask(ctx, "u2", "proj-9", AddTaskRequest{Title: "Design spec"})

	req.NoError(err)
	req.Equal(task, published)
	req.Equal("Design spec", task.Title)
	req.Equal(domain.TaskTodo, task.Status)
	req.Equal(1, task.Version)
	req.NotEmpty(task.ID)
}

func TestProjectService_AddTask_FailedWritePublishesNothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	boom := stderrors.New("badger closed")

	// Given a repository that fails to save
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.projects.EXPECT().SaveTask(gomock.Any()).Return(boom)
	f.notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// When a task is added
	_, err := f.service.AddTask(context.Background(), "u1", "proj-9", AddTaskRequest{Title: "Design spec"})

	// Then the error comes back and no event is published
	req.ErrorIs(err, boom)
}

func TestProjectService_AddTask_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// An outsider cannot add tasks
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	_, err := f.service.AddTask(ctx, "u9", "proj-9", AddTaskRequest{Title: "Design spec"})
	req.ErrorIs(err, errors.ErrAccessDenied)

	// An unknown status never reaches the repository
	_, err = f.service.AddTask(ctx, "u1", "proj-9", AddTaskRequest{Title: "Design spec", Status: "Blocked"})
	req.ErrorIs(err, errors.ErrInvalidInput)

	// Neither does a missing title
	_, err = f.service.AddTask(ctx, "u1", "proj-9", AddTaskRequest{})
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestProjectService_UpdateTaskStatus_BumpsVersion(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	existing := domain.Task{ID: "t1", ProjectID: "proj-9", Title: "Design spec", Status: domain.TaskTodo,
		Version: 1, UpdatedAt: time.Now().Add(-time.Hour)}

	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.projects.EXPECT().GetTask("proj-9", "t1").Return(existing, nil)
	f.projects.EXPECT().SaveTask(gomock.Any()).Return(nil)
	f.notifier.EXPECT().NotifyRoom(gomock.Any(), domain.RoomID("proj-9"), event.TaskUpdatedType, gomock.Any()).Return(nil)

	task, err := f.service.UpdateTaskStatus(context.Background(), "u2", "proj-9", "t1",
		UpdateTaskStatusRequest{Status: domain.TaskInProgress})

	req.NoError(err)
	req.Equal(2, task.Version)
	req.Equal(domain.TaskInProgress, task.Status)
	req.True(task.UpdatedAt.After(existing.UpdatedAt))
}

func TestProjectService_AddTeamMember(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil).Times(3)

	// A plain member cannot manage the team
	_, err := f.service.AddTeamMember(ctx, "u2", "proj-9", AddMemberRequest{UserID: "u4"})
	req.ErrorIs(err, errors.ErrAccessDenied)

	// An existing member is rejected
	_, err = f.service.AddTeamMember(ctx, "u3", "proj-9", AddMemberRequest{UserID: "u2"})
	req.ErrorIs(err, errors.ErrAlreadyMember)

	// An admin adds a new member with the default role
	f.projects.EXPECT().SaveMember(gomock.Any()).Return(nil)
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.TeamMemberAddedType, gomock.Any()).Return(nil)
	member, err := f.service.AddTeamMember(ctx, "u3", "proj-9", AddMemberRequest{UserID: "u4"})
	req.NoError(err)
	req.Equal(domain.IdentityID("u4"), member.ID)
	req.Equal(domain.RoleMember, member.Role)
}

func TestProjectService_RemoveTeamMember(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil).Times(2)

	// The owner cannot be removed
	err := f.service.RemoveTeamMember(ctx, "u3", "proj-9", "u1")
	req.ErrorIs(err, errors.ErrCannotRemoveOwner)

	// Removing a member publishes its id
	f.projects.EXPECT().DeleteMember("proj-9", domain.IdentityID("u2")).Return(nil)
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.TeamMemberRemovedType,
		event.MemberRemoved{ProjectID: "proj-9", UserID: "u2"}).Return(nil)
	req.NoError(f.service.RemoveTeamMember(ctx, "u1", "proj-9", "u2"))
}

func TestProjectService_SendMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given an index that is unavailable
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.projects.EXPECT().SaveMessage(gomock.Any()).Return(nil)
	f.index.EXPECT().Index(gomock.Any()).Return(stderrors.New("index closed"))
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.MessageReceivedType, gomock.Any()).Return(nil)

	// When a message with a forbidden word is sent
	message, err := f.service.SendMessage(ctx, "u2", "proj-9",
		SendMessageRequest{Content: "The badger is finally out of the backlog and ready for review"})

	// Then it is censored, tagged and still delivered
	req.NoError(err)
	req.Equal("The ****** is finally out of the backlog and ready for review", message.Content)
	req.Equal("en", message.Lang)
	req.Equal(domain.IdentityID("u2"), message.SenderID)
}

func TestProjectService_SendMessage_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.service.SendMessage(context.Background(), "u2", "proj-9", SendMessageRequest{Content: "   "})
	req.ErrorIs(err, errors.ErrInvalidInput)

	_, err = f.service.SendMessage(context.Background(), "u2", "proj-9",
		SendMessageRequest{Content: strings.Repeat("a", 201)})
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestProjectService_SearchMessages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	project := project9()
	project.Messages = []domain.Message{{ID: "m1", Content: "kickoff"}, {ID: "m2", Content: "release notes"}}

	f.projects.EXPECT().GetProject("proj-9").Return(project, nil)
	f.index.EXPECT().Search("proj-9", "release", 10).Return([]string{"m2", "gone"}, nil)

	messages, err := f.service.SearchMessages("u2", "proj-9", "release", 10)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("m2", messages[0].ID)
}

func TestProjectService_UploadFile(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)

	var stored string
	f.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string, r io.Reader) (int64, error) {
			stored = key
			n, err := io.Copy(io.Discard, r)
			return n, err
		})
	f.blobs.EXPECT().URL(gomock.Any()).DoAndReturn(func(key string) string { return "/files/" + key })
	f.projects.EXPECT().SaveFile(gomock.Any()).Return(nil)
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.FileUploadedType, gomock.Any()).Return(nil)

	file, err := f.service.UploadFile(ctx, "u2", "proj-9", "../notes.txt", strings.NewReader("plain notes"))

	req.NoError(err)
	req.Equal("notes.txt", file.Name)
	req.Equal(int64(11), file.Size)
	req.Equal("text/plain; charset=utf-8", file.MimeType)
	req.Len(file.Checksum, 64)
	req.Equal("proj-9/"+file.ID+"/notes.txt", stored)
	req.Equal("/files/"+stored, file.URL)
}

func TestProjectService_UploadFile_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil).Times(2)
	f.notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.UploadFile(ctx, "u2", "proj-9", "empty.txt", strings.NewReader(""))
	req.ErrorIs(err, errors.ErrEmptyUpload)

	_, err = f.service.UploadFile(ctx, "u2", "proj-9", "big.bin", strings.NewReader(strings.Repeat("x", 65)))
	req.ErrorIs(err, errors.ErrUploadTooLarge)
}

func TestProjectService_UploadFile_MetadataFailureRemovesBlob(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	boom := stderrors.New("badger closed")

	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.blobs.EXPECT().Put(ctx, gomock.Any(), gomock.Any()).Return(int64(5), nil)
	f.blobs.EXPECT().URL(gomock.Any()).Return("/files/x")
	f.projects.EXPECT().SaveFile(gomock.Any()).Return(boom)
	f.blobs.EXPECT().Delete(ctx, gomock.Any()).Return(nil)
	f.notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.UploadFile(ctx, "u2", "proj-9", "notes.txt", strings.NewReader("notes"))
	req.ErrorIs(err, boom)
}

func TestProjectService_DeleteFile(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	file := domain.File{ID: "f1", ProjectID: "proj-9", Name: "notes.txt"}

	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.projects.EXPECT().GetFile("proj-9", "f1").Return(file, nil)
	f.projects.EXPECT().DeleteFile("proj-9", "f1").Return(nil)
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.FileDeletedType,
		event.FileDeleted{ProjectID: "proj-9", FileID: "f1"}).Return(nil)
	f.blobs.EXPECT().Delete(ctx, "proj-9/f1/notes.txt").Return(nil)

	req.NoError(f.service.DeleteFile(ctx, "u2", "proj-9", "f1"))
}

func TestProjectService_GetProject_AccessDenied(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)

	_, err := f.service.GetProject("u9", "proj-9")
	req.ErrorIs(err, errors.ErrAccessDenied)
}

func TestProjectService_UpdateProject(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return at }
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil).Times(2)

	// A plain member cannot edit the project
	_, err := f.service.UpdateProject(ctx, "u2", "proj-9", UpdateProjectRequest{Title: lo.ToPtr("Relaunch")})
	req.ErrorIs(err, errors.ErrAccessDenied)

	// An admin renames it, the description is left as is
	f.projects.EXPECT().UpdateProject(domain.Project{ID: "proj-9", Title: "Relaunch", Owner: "u1", UpdatedAt: at}).Return(nil)
	f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.ProjectUpdatedType,
		event.ProjectUpdated{ProjectID: "proj-9", Title: "Relaunch", UpdatedAt: at}).Return(nil)
	project, err := f.service.UpdateProject(ctx, "u3", "proj-9", UpdateProjectRequest{Title: lo.ToPtr(" Relaunch ")})
	req.NoError(err)
	req.Equal("Relaunch", project.Title)
	req.Equal(at, project.UpdatedAt)
	req.Len(project.Members, 3)
}

func TestProjectService_UpdateProject_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.projects.EXPECT().GetProject(gomock.Any()).Times(0)

	// Nothing to change
	_, err := f.service.UpdateProject(ctx, "u1", "proj-9", UpdateProjectRequest{})
	req.ErrorIs(err, errors.ErrInvalidInput)

	// A blank title
	_, err = f.service.UpdateProject(ctx, "u1", "proj-9", UpdateProjectRequest{Title: lo.ToPtr("   ")})
	req.ErrorIs(err, errors.ErrInvalidInput)

	// A title over the limit
	_, err = f.service.UpdateProject(ctx, "u1", "proj-9", UpdateProjectRequest{Title: lo.ToPtr(strings.Repeat("a", 201))})
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestProjectService_DeleteProject(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	project := project9()
	project.Files = []domain.File{{ID: "f1", ProjectID: "proj-9", Name: "notes.txt"}, {ID: "f2", ProjectID: "proj-9", Name: "spec.pdf"}}
	project.Messages = []domain.Message{{ID: "m1", ProjectID: "proj-9"}, {ID: "m2", ProjectID: "proj-9"}}
	f.projects.EXPECT().GetProject("proj-9").Return(project, nil).Times(2)

	// An admin is not the owner
	req.ErrorIs(f.service.DeleteProject(ctx, "u3", "proj-9"), errors.ErrAccessDenied)

	// The owner deletes it: records, then the room, then blobs and index
	gomock.InOrder(
		f.projects.EXPECT().DeleteProject("proj-9").Return(nil),
		f.notifier.EXPECT().NotifyRoom(ctx, domain.RoomID("proj-9"), event.ProjectDeletedType,
			event.ProjectDeleted{ProjectID: "proj-9"}).Return(nil),
	)
	f.blobs.EXPECT().Delete(ctx, "proj-9/f1/notes.txt").Return(nil)
	// A blob left behind does not fail the deletion
	f.blobs.EXPECT().Delete(ctx, "proj-9/f2/spec.pdf").Return(stderrors.New("disk full"))
	f.index.EXPECT().Remove([]string{"m1", "m2"}).Return(nil)

	req.NoError(f.service.DeleteProject(ctx, "u1", "proj-9"))
}

func TestProjectService_DeleteProject_FailedWritePublishesNothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	boom := stderrors.New("txn too big")

	// Given a repository that fails to delete
	f.projects.EXPECT().GetProject("proj-9").Return(project9(), nil)
	f.projects.EXPECT().DeleteProject("proj-9").Return(boom)
	f.notifier.EXPECT().NotifyRoom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	f.blobs.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)
	f.index.EXPECT().Remove(gomock.Any()).Times(0)

	// Then the error comes back and nothing else happens
	req.ErrorIs(f.service.DeleteProject(context.Background(), "u1", "proj-9"), boom)

	// And an unknown project is reported as such
	f.projects.EXPECT().GetProject("nope").Return(domain.Project{}, errors.ErrProjectNotFound)
	req.ErrorIs(f.service.DeleteProject(context.Background(), "u1", "nope"), errors.ErrProjectNotFound)
}

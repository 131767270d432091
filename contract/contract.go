//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"collab-live/domain"
	"collab-live/domain/event"
	"context"
	"io"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one live connection.
// Consume must not block on a slow peer.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	Register(conn domain.Connection, sink EventSink)
	Unregister(connID domain.ConnectionID) bool
	Lookup(identity domain.IdentityID) (domain.ConnectionID, bool)
	Sink(connID domain.ConnectionID) (EventSink, bool)
	All() []domain.ConnectionID
	Presence() []domain.IdentityID
}

type IRoomDirectory interface {
	Join(roomID domain.RoomID, connID domain.ConnectionID) bool
	Leave(roomID domain.RoomID, connID domain.ConnectionID) bool
	MembersOf(roomID domain.RoomID) []domain.ConnectionID
	Purge(connID domain.ConnectionID) []domain.RoomID
	RoomsOf(connID domain.ConnectionID) []domain.RoomID
}

type IRouter interface {
	Publish(ctx context.Context, evt event.DomainEvent) int
}

// Notifier is the only door mutating code has to the live layer.
type Notifier interface {
	NotifyRoom(ctx context.Context, roomID domain.RoomID, t event.Type, payload any) error
	NotifyIdentity(ctx context.Context, identity domain.IdentityID, t event.Type, payload any) error
}

type IHub interface {
	Notifier
	Connect(conn domain.Connection, sink EventSink)
	Disconnect(connID domain.ConnectionID) bool
	Join(connID domain.ConnectionID, roomID domain.RoomID) error
	Leave(connID domain.ConnectionID, roomID domain.RoomID) error
	Presence() []domain.IdentityID
	MembersOf(roomID domain.RoomID) []domain.ConnectionID
	Start(ctx context.Context) error
	Stop()
}

type ProjectRepository interface {
	CreateProject(project domain.Project) error
	UpdateProject(project domain.Project) error
	DeleteProject(projectID string) error
	GetProject(projectID string) (domain.Project, error)
	ListProjects(identity domain.IdentityID) ([]domain.Project, error)
	SaveMember(member domain.Member) error
	DeleteMember(projectID string, userID domain.IdentityID) error
	SaveTask(task domain.Task) error
	GetTask(projectID, taskID string) (domain.Task, error)
	SaveMessage(message domain.Message) error
	GetMessages(projectID string, cursor *string) ([]domain.Message, *string, error)
	SaveFile(file domain.File) error
	GetFile(projectID, fileID string) (domain.File, error)
	DeleteFile(projectID, fileID string) error
}

type DirectMessageRepository interface {
	SaveDirectMessage(dm domain.DirectMessage) error
	GetConversation(a, b domain.IdentityID, cursor *string) ([]domain.DirectMessage, *string, error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

type MessageIndex interface {
	Index(message domain.Message) error
	Search(projectID, query string, limit int) ([]string, error)
	Remove(messageIDs []string) error
}

type Moderator interface {
	Censor(content string) (string, []string)
}

package event

import (
	"collab-live/domain"
	"encoding/json"
	"time"
)

type Type string

const (
	PresenceType          Type = "presence"
	TaskAddedType         Type = "task-added"
	TaskUpdatedType       Type = "task-updated"
	MessageReceivedType   Type = "message-received"
	FileUploadedType      Type = "file-uploaded"
	FileDeletedType       Type = "file-deleted"
	TeamMemberAddedType   Type = "team-member-added"
	TeamMemberRemovedType Type = "team-member-removed"
	DirectMessageType     Type = "direct-message"
	ProjectUpdatedType    Type = "project-updated"
	ProjectDeletedType    Type = "project-deleted"

	// Control frames answering a client command, never routed.
	JoinedType Type = "joined"
	LeftType   Type = "left"
	ErrorType  Type = "error"
)

type ScopeKind string

const (
	GlobalScope     ScopeKind = "global"
	RoomScope       ScopeKind = "room"
	IdentityScope   ScopeKind = "identity"
	ConnectionScope ScopeKind = "connection"
)

// Scope tells the router who should receive an event.
type Scope struct {
	Kind     ScopeKind         `json:"kind"`
	Room     domain.RoomID     `json:"room,omitempty"`
	Identity domain.IdentityID `json:"identity,omitempty"`
}

func Global() Scope { return Scope{Kind: GlobalScope} }

func InRoom(id domain.RoomID) Scope { return Scope{Kind: RoomScope, Room: id} }

func ToIdentity(id domain.IdentityID) Scope { return Scope{Kind: IdentityScope, Identity: id} }

func ToConnection() Scope { return Scope{Kind: ConnectionScope} }

// DomainEvent is a notification about a change already committed elsewhere.
// It is never persisted and never replayed.
type DomainEvent struct {
	Type    Type      `json:"type"`
	Scope   Scope     `json:"scope"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`

	// Recipients, when non-nil, are the connections resolved at publish time.
	// They override the scope when the event is routed.
	Recipients []domain.ConnectionID `json:"-"`
}

func New(t Type, scope Scope, payload any) DomainEvent {
	return DomainEvent{Type: t, Scope: scope, Payload: payload, At: time.Now().UTC()}
}

// To pins the recipients. An empty set still pins: nobody receives the event.
func (e DomainEvent) To(recipients []domain.ConnectionID) DomainEvent {
	if recipients == nil {
		recipients = []domain.ConnectionID{}
	}
	e.Recipients = recipients
	return e
}

// Envelope is the receiving side of a DomainEvent, payload still encoded.
type Envelope struct {
	Type    Type            `json:"type"`
	Scope   Scope           `json:"scope"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// ErrorPayload is carried by ErrorType frames.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RoomAck answers a join or leave command.
type RoomAck struct {
	Room domain.RoomID `json:"room"`
}

// MemberRemoved is the payload of TeamMemberRemovedType.
type MemberRemoved struct {
	ProjectID string            `json:"projectId"`
	UserID    domain.IdentityID `json:"userId"`
}

// FileDeleted is the payload of FileDeletedType.
type FileDeleted struct {
	ProjectID string `json:"projectId"`
	FileID    string `json:"fileId"`
}

// ProjectUpdated is the payload of ProjectUpdatedType.
type ProjectUpdated struct {
	ProjectID   string    `json:"projectId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectDeleted is the payload of ProjectDeletedType.
type ProjectDeleted struct {
	ProjectID string `json:"projectId"`
}

// IsRoomEvent reports whether the type is published into a project room.
func (t Type) IsRoomEvent() bool {
	switch t {
	case TaskAddedType, TaskUpdatedType, MessageReceivedType, FileUploadedType,
		FileDeletedType, TeamMemberAddedType, TeamMemberRemovedType,
		ProjectUpdatedType, ProjectDeletedType:
		return true
	}
	return false
}

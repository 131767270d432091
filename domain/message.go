// Package domain contains core concepts of the collaboration system.
// This file defines the project resources carried by room events.
// Every resource is keyed by a string id so clients can upsert it.
package domain

import (
	"time"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "Todo"
	TaskInProgress TaskStatus = "In Progress"
	TaskDone       TaskStatus = "Done"
)

func (s TaskStatus) IsValid() bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskDone
}

type MemberRole string

const (
	RoleAdmin    MemberRole = "admin"
	RoleMember   MemberRole = "member"
	RoleMentor   MemberRole = "mentor"
	RoleObserver MemberRole = "observer"
)

func (r MemberRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleMentor, RoleObserver:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	AssignedTo  IdentityID `json:"assignedTo,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t Task) Key() string { return t.ID }

// Attachment is a file sent along with a message.
type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"type"`
}

// Message represents an immutable project chat entry.
type Message struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	SenderID  IdentityID  `json:"sender"`
	Content   string      `json:"content"`
	Lang      string      `json:"lang,omitempty"`
	File      *Attachment `json:"file,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (m Message) Key() string { return m.ID }

type File struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"projectId"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	MimeType   string     `json:"type"`
	Size       int64      `json:"size"`
	Checksum   string     `json:"checksum,omitempty"`
	UploadedBy IdentityID `json:"uploadedBy"`
	UploadedAt time.Time  `json:"uploadedAt"`
}

func (f File) Key() string { return f.ID }

// Member is a team membership; its id is the member's identity.
type Member struct {
	ID        IdentityID `json:"id"`
	ProjectID string     `json:"projectId"`
	Role      MemberRole `json:"role"`
	JoinedAt  time.Time  `json:"joinedAt"`
}

func (m Member) Key() string { return string(m.ID) }

// DirectMessage is a one-to-one message delivered to the receiver's live connection.
type DirectMessage struct {
	ID         string     `json:"id"`
	SenderID   IdentityID `json:"sender"`
	ReceiverID IdentityID `json:"receiver"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (d DirectMessage) Key() string { return d.ID }

// Project is the durable aggregate behind a project room.
type Project struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Owner       IdentityID `json:"owner"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Members     []Member   `json:"teamMembers"`
	Tasks       []Task     `json:"tasks"`
	Messages    []Message  `json:"messages"`
	Files       []File     `json:"files"`
}

func (p Project) Room() RoomID { return RoomID(p.ID) }

func (p Project) IsOwner(id IdentityID) bool { return p.Owner == id }

func (p Project) Member(id IdentityID) (Member, bool) {
	for _, m := range p.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// HasAccess is true for the owner and every team member.
func (p Project) HasAccess(id IdentityID) bool {
	if p.IsOwner(id) {
		return true
	}
	_, ok := p.Member(id)
	return ok
}

// Header returns the project without its subcollections.
func (p Project) Header() Project {
	return Project{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Owner:       p.Owner,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CanManageMembers is true for the owner and admins. Admins may also edit
// the project, only the owner may delete it.
func (p Project) CanManageMembers(id IdentityID) bool {
	if p.IsOwner(id) {
		return true
	}
	m, ok := p.Member(id)
	return ok && m.Role == RoleAdmin
}

package services

import (
	"collab-live/domain"
	"time"
)

type CreateProjectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
}

// UpdateProjectRequest edits the header; a nil field is left unchanged.
type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=4000"`
}

type AddMemberRequest struct {
	UserID domain.IdentityID `json:"userId" validate:"required,max=64,printascii"`
	Role   domain.MemberRole `json:"role,omitempty"`
}

type AddTaskRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=4000"`
	Status      domain.TaskStatus `json:"status,omitempty"`
	AssignedTo  domain.IdentityID `json:"assignedTo,omitempty" validate:"max=64"`
	DueDate     *time.Time        `json:"dueDate,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status domain.TaskStatus `json:"status" validate:"required"`
}

// SendMessageRequest carries text, an attachment, or both.
type SendMessageRequest struct {
	Content string             `json:"content"`
	File    *domain.Attachment `json:"file,omitempty"`
}

type DirectMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

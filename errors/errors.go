package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrEmptyWords   = fmt.Errorf("no words have been found")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// Real-time layer
	ErrQueueFull         = errors.New("outbound queue is full")
	ErrHubSaturated      = errors.New("hub event channel is full")
	ErrConnectionClosed  = errors.New("connection is closed")
	ErrUnknownConnection = errors.New("connection is not registered")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrInvalidPayload    = errors.New("invalid payload")

	// Persistence collaborator
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrAlreadyMember     = errors.New("user is already a team member")
	ErrCannotRemoveOwner = errors.New("cannot remove project owner")
	ErrEmptyUpload       = errors.New("no file uploaded")
	ErrUploadTooLarge    = errors.New("uploaded file is too large")

	// Authentication
	ErrMissingToken     = errors.New("authorization token is missing")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrTokenGeneration  = errors.New("token generation failed")
	ErrInvalidCharacter = errors.New("replacement must be a single character")
)

// HTTPStatus maps a domain error onto the status code returned by the REST surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrProjectNotFound),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrCannotRemoveOwner),
		errors.Is(err, ErrEmptyUpload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

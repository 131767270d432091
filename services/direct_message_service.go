package services

import (
	"collab-live/auth"
	"collab-live/bridge"
	"collab-live/contract"
	"collab-live/domain"
	"collab-live/domain/event"
	"collab-live/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IDirectMessageService interface {
	Send(ctx context.Context, sender, receiver domain.IdentityID, req DirectMessageRequest) (domain.DirectMessage, error)
	GetConversation(caller, peer domain.IdentityID, cursor *string) ([]domain.DirectMessage, *string, error)
}

// DirectMessageService persists one-to-one messages and pushes them to the
// receiver's active connection. An offline receiver reads them later.
type DirectMessageService struct {
	log              *slog.Logger
	messages         contract.DirectMessageRepository
	moderator        contract.Moderator
	bridge           *bridge.Bridge
	maxContentLength int
}

func NewDirectMessageService(log *slog.Logger, messages contract.DirectMessageRepository, moderator contract.Moderator,
	b *bridge.Bridge, maxContentLength int) *DirectMessageService {
	return &DirectMessageService{
		log:              log,
		messages:         messages,
		moderator:        moderator,
		bridge:           b,
		maxContentLength: maxContentLength,
	}
}

func (s *DirectMessageService) Send(ctx context.Context, sender, receiver domain.IdentityID,
	req DirectMessageRequest) (domain.DirectMessage, error) {
	if err := auth.Validate(req); err != nil {
		return domain.DirectMessage{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if _, ok := auth.ParseIdentity(string(receiver)); !ok {
		return domain.DirectMessage{}, fmt.Errorf("%w: receiver %q", errors.ErrInvalidInput, receiver)
	}
	content := strings.TrimSpace(req.Content)
	if s.maxContentLength > 0 && len(content) > s.maxContentLength {
		return domain.DirectMessage{}, fmt.Errorf("%w: content longer than %d bytes",
			errors.ErrInvalidInput, s.maxContentLength)
	}
	censored, _ := s.moderator.Censor(content)

	return bridge.Direct(ctx, s.bridge, receiver, event.DirectMessageType,
		func(context.Context) (domain.DirectMessage, error) {
			dm := domain.DirectMessage{
				ID:         uuid.NewString(),
				SenderID:   sender,
				ReceiverID: receiver,
				Content:    censored,
				CreatedAt:  time.Now().UTC(),
			}
			return dm, s.messages.SaveDirectMessage(dm)
		})
}

func (s *DirectMessageService) GetConversation(caller, peer domain.IdentityID, cursor *string) ([]domain.DirectMessage, *string, error) {
	return s.messages.GetConversation(caller, peer, cursor)
}

package repositories

import (
	"collab-live/domain"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const directMessagePrefix = "dm:"

// DirectMessageRepository stores one-to-one messages under a key shared by
// both participants: dm:{low_id}|{high_id}:{timestamp_padded}:{message_id}.
type DirectMessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewDirectMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *DirectMessageRepository {
	return &DirectMessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func conversationPrefix(a, b domain.IdentityID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s%s|%s:", directMessagePrefix, a, b)
}

func (r *DirectMessageRepository) SaveDirectMessage(dm domain.DirectMessage) error {
	key := fmt.Sprintf("%s%019d:%s", conversationPrefix(dm.SenderID, dm.ReceiverID), dm.CreatedAt.UnixNano(), dm.ID)
	return r.db.Update(func(txn *badger.Txn) error {
		return setRecord(txn, []byte(key), dm)
	})
}

// GetConversation pages from the newest message backwards, like project messages.
func (r *DirectMessageRepository) GetConversation(a, b domain.IdentityID, cursor *string) ([]domain.DirectMessage, *string, error) {
	var messages []domain.DirectMessage
	var next *string
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		messages, next, err = newestFirst[domain.DirectMessage](txn, conversationPrefix(a, b), cursor, r.limitMessages)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	r.log.Debug("Conversation loaded", "messages", len(messages), "more", next != nil)
	return messages, next, nil
}

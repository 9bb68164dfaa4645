package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type MessageStore struct {
	db *DB
}

func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(_ context.Context, chatID, senderID uuid.UUID, content string) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ch, ok := s.db.chats[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if _, ok := s.db.users[senderID]; !ok {
		return nil, repository.ErrNotFound
	}

	s.db.nextMsgID++
	msg := models.Message{
		ID:         s.db.nextMsgID,
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: s.db.displayName(senderID),
		Content:    content,
		CreatedAt:  s.db.now(),
	}
	s.db.messages = append(s.db.messages, msg)

	ch.UpdatedAt = msg.CreatedAt
	s.db.chats[chatID] = ch
	return &msg, nil
}

// ListByChat relies on append order matching (created_at, id) order, which
// holds because both are assigned under the same lock.
func (s *MessageStore) ListByChat(_ context.Context, chatID uuid.UUID) ([]models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range s.db.messages {
		if m.ChatID == chatID {
			m.SenderName = s.db.displayName(m.SenderID)
			out = append(out, m)
		}
	}
	return out, nil
}

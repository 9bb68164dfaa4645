package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type ChatStore struct {
	db *DB
}

func NewChatStore(db *DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) GetOrCreate(_ context.Context, a, b uuid.UUID, rideID *uuid.UUID) (*models.ChatRoom, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if id, ok := s.db.pairs[pairKey{a: a, b: b}]; ok {
		ch := s.db.chats[id]
		return &ch, false, nil
	}
	if _, ok := s.db.users[a]; !ok {
		return nil, false, repository.ErrNotFound
	}
	if _, ok := s.db.users[b]; !ok {
		return nil, false, repository.ErrNotFound
	}

	now := s.db.now()
	ch := models.ChatRoom{
		ID:           uuid.New(),
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rideID != nil {
		id := *rideID
		ch.RideID = &id
	}
	s.db.chats[ch.ID] = ch
	s.db.pairs[pairKey{a: a, b: b}] = ch.ID
	return &ch, true, nil
}

func (s *ChatStore) GetByID(_ context.Context, chatID uuid.UUID) (*models.ChatRoom, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ch, ok := s.db.chats[chatID]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (s *ChatStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.ChatRoomView, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	views := make([]models.ChatRoomView, 0)
	for _, ch := range s.db.chats {
		if !ch.HasParticipant(userID) {
			continue
		}
		other := s.db.users[ch.Other(userID)]
		views = append(views, models.ChatRoomView{
			ChatRoom:       ch,
			OtherUserID:    other.ID,
			OtherUserName:  other.DisplayName,
			OtherAvatarURL: other.AvatarURL,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].UpdatedAt.Equal(views[j].UpdatedAt) {
			return views[i].UpdatedAt.After(views[j].UpdatedAt)
		}
		return views[i].ID.String() < views[j].ID.String()
	})
	return views, nil
}

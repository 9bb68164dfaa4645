package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(_ context.Context, email, displayName, passwordHash string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, taken := s.db.emails[email]; taken {
		return nil, repository.ErrDuplicate
	}
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    s.db.now(),
	}
	s.db.users[u.ID] = u
	s.db.emails[email] = u.ID
	return &u, nil
}

func (s *UserStore) GetByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	id, ok := s.db.emails[email]
	if !ok {
		return nil, nil
	}
	u := s.db.users[id]
	return &u, nil
}

func (s *UserStore) Update(_ context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[userID]
	if !ok {
		return nil, nil
	}
	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := s.db.emails[*upd.Email]; taken {
			return nil, repository.ErrDuplicate
		}
		delete(s.db.emails, u.Email)
		u.Email = *upd.Email
		s.db.emails[u.Email] = u.ID
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	s.db.users[userID] = u
	return &u, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
	"github.com/lalith-99/campusride/internal/retry"
	"github.com/lalith-99/campusride/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxDisplayName = 100

	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores everything past 72 bytes
)

// AccountService owns identity: signup, login, account settings and the
// avatar. Identity store and object storage failures come back as
// KindUpstream.
type AccountService struct {
	users   repository.UserRepository
	avatars storage.Store
	retry   retry.Policy
	logger  *zap.Logger
}

func NewAccountService(users repository.UserRepository, avatars storage.Store, logger *zap.Logger) *AccountService {
	p := retry.Default()
	p.OnRetry = func(err error, wait time.Duration) {
		logger.Warn("retrying account read", zap.Error(err), zap.Duration("wait", wait))
	}
	return &AccountService{users: users, avatars: avatars, retry: p, logger: logger}
}

// SettingsUpdate is a change to the caller's own account. Nil or empty
// fields are left alone. Changing the email or the password requires
// CurrentPassword; NewPassword must be repeated in ConfirmPassword.
type SettingsUpdate struct {
	DisplayName     *string
	Email           *string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validDisplayName(s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", Validation("display_name_required", "display name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		return "", Validation("display_name_too_long", "display name is too long")
	}
	return name, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "", Validation("invalid_password",
			fmt.Sprintf("password must be %d to %d bytes", minPasswordLen, maxPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Signup creates an account. The unique index on email decides races
// between concurrent signups.
func (s *AccountService) Signup(ctx context.Context, email, password, displayName string) (*models.User, error) {
	name, err := validDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, normalizeEmail(email), name, hash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, Upstream("create user", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Authenticate checks an email and password pair. Unknown email and wrong
// password give the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.User, error) {
		return s.users.GetByEmail(ctx, normalizeEmail(email))
	})
	if err != nil {
		return nil, Upstream("get user by email", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, Upstream("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AccountService) UpdateSettings(ctx context.Context, userID uuid.UUID, in SettingsUpdate) (*models.User, error) {
	var upd models.ProfileUpdate
	if in.DisplayName != nil {
		name, err := validDisplayName(*in.DisplayName)
		if err != nil {
			return nil, err
		}
		upd.DisplayName = &name
	}
	if in.NewPassword != "" && in.NewPassword != in.ConfirmPassword {
		return nil, Validation("password_mismatch", "new passwords do not match")
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var email string
	if in.Email != nil {
		email = normalizeEmail(*in.Email)
		if email == "" {
			return nil, Validation("email_required", "email cannot be empty")
		}
	}
	emailChanged := email != "" && email != current.Email

	if emailChanged || in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, Validation("current_password_required", "current password is required to change email or password")
		}
		if bcrypt.CompareHashAndPassword([]byte(current.PasswordHash), []byte(in.CurrentPassword)) != nil {
			return nil, ErrWrongPassword
		}
	}
	if emailChanged {
		upd.Email = &email
	}
	if in.NewPassword != "" {
		hash, err := hashPassword(in.NewPassword)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	user, err := s.update(ctx, userID, upd)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil || upd.PasswordHash != nil {
		s.logger.Info("account credentials changed",
			zap.String("user_id", userID.String()),
			zap.Bool("email", upd.Email != nil),
			zap.Bool("password", upd.PasswordHash != nil),
		)
	}
	return user, nil
}

// SetAvatar stores an already sniffed image and points the user's avatar
// at it.
func (s *AccountService) SetAvatar(ctx context.Context, userID uuid.UUID, contentType, ext string, body io.Reader) (*models.User, error) {
	url, err := s.avatars.Put(ctx, storage.AvatarKey(userID, ext), contentType, body)
	if err != nil {
		return nil, Upstream("store avatar", err)
	}
	return s.update(ctx, userID, models.ProfileUpdate{AvatarURL: &url})
}

func (s *AccountService) update(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	user, err := s.users.Update(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, Upstream("update user", err)
	}
	// A valid token for a deleted account.
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

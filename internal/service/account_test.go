package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "correct-horse"

type fakeStore struct {
	err  error
	keys []string
}

func (s *fakeStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return "https://cdn.test/" + key, nil
}

// downUsers fails every call the way an unreachable database does.
type downUsers struct{ err error }

func (d downUsers) Create(context.Context, string, string, string) (*models.User, error) {
	return nil, d.err
}
func (d downUsers) GetByID(context.Context, uuid.UUID) (*models.User, error) { return nil, d.err }
func (d downUsers) GetByEmail(context.Context, string) (*models.User, error) { return nil, d.err }
func (d downUsers) Update(context.Context, uuid.UUID, models.ProfileUpdate) (*models.User, error) {
	return nil, d.err
}

func newAccounts(t *testing.T) (*AccountService, *fakeStore) {
	t.Helper()
	avatars := &fakeStore{}
	return NewAccountService(memory.NewUserStore(memory.New()), avatars, zap.NewNop()), avatars
}

func strPtr(s string) *string { return &s }

func TestSignupAndAuthenticate(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()

	u, err := accounts.Signup(ctx, "  Sam@Campus.EDU ", testPassword, " Sam ")
	require.NoError(t, err)
	assert.Equal(t, "sam@campus.edu", u.Email)
	assert.Equal(t, "Sam", u.DisplayName)
	assert.NotEqual(t, testPassword, u.PasswordHash)

	_, err = accounts.Signup(ctx, "sam@campus.edu", testPassword, "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := accounts.Authenticate(ctx, "SAM@campus.edu", testPassword)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = accounts.Authenticate(ctx, "sam@campus.edu", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Authenticate(ctx, "nobody@campus.edu", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateSettings_ChangeEmailAndPassword(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()
	u, err := accounts.Signup(ctx, "sam@campus.edu", testPassword, "Sam")
	require.NoError(t, err)

	updated, err := accounts.UpdateSettings(ctx, u.ID, SettingsUpdate{
		Email:           strPtr("Sam.R@campus.edu"),
		CurrentPassword: testPassword,
		NewPassword:     "battery-staple",
		ConfirmPassword: "battery-staple",
	})
	require.NoError(t, err)
	assert.Equal(t, "sam.r@campus.edu", updated.Email)

	_, err = accounts.Authenticate(ctx, "sam@campus.edu", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "old email no longer logs in")
	_, err = accounts.Authenticate(ctx, "sam.r@campus.edu", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials, "old password no longer logs in")

	got, err := accounts.Authenticate(ctx, "sam.r@campus.edu", "battery-staple")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// The freed address can be registered again.
	_, err = accounts.Signup(ctx, "sam@campus.edu", testPassword, "New Sam")
	assert.NoError(t, err)
}

func TestUpdateSettings_Rejects(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()
	sam, err := accounts.Signup(ctx, "sam@campus.edu", testPassword, "Sam")
	require.NoError(t, err)
	_, err = accounts.Signup(ctx, "pat@campus.edu", testPassword, "Pat")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   SettingsUpdate
		want error
		code string
	}{
		{"taken email", SettingsUpdate{Email: strPtr("pat@campus.edu"), CurrentPassword: testPassword}, ErrEmailTaken, ""},
		{"email without current password", SettingsUpdate{Email: strPtr("new@campus.edu")}, nil, "current_password_required"},
		{"wrong current password", SettingsUpdate{NewPassword: "battery-staple", ConfirmPassword: "battery-staple", CurrentPassword: "nope-nope"}, ErrWrongPassword, ""},
		{"mismatched confirmation", SettingsUpdate{NewPassword: "battery-staple", ConfirmPassword: "battery-stapel", CurrentPassword: testPassword}, nil, "password_mismatch"},
		{"short new password", SettingsUpdate{NewPassword: "short", ConfirmPassword: "short", CurrentPassword: testPassword}, nil, "invalid_password"},
		{"blank email", SettingsUpdate{Email: strPtr("  ")}, nil, "email_required"},
		{"blank name", SettingsUpdate{DisplayName: strPtr(" ")}, nil, "display_name_required"},
		{"long name", SettingsUpdate{DisplayName: strPtr(strings.Repeat("x", 101))}, nil, "display_name_too_long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.UpdateSettings(ctx, sam.ID, tt.in)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, KindValidation, se.Kind)
			assert.Equal(t, tt.code, se.Code)
		})
	}

	got, err := accounts.Authenticate(ctx, "sam@campus.edu", testPassword)
	require.NoError(t, err, "rejected updates leave credentials alone")
	assert.Equal(t, "Sam", got.DisplayName)
}

func TestUpdateSettings_SameEmailNeedsNoPassword(t *testing.T) {
	accounts, _ := newAccounts(t)
	ctx := context.Background()
	sam, err := accounts.Signup(ctx, "sam@campus.edu", testPassword, "Sam")
	require.NoError(t, err)

	u, err := accounts.UpdateSettings(ctx, sam.ID, SettingsUpdate{Email: strPtr("SAM@campus.edu"), DisplayName: strPtr("Sam R.")})
	require.NoError(t, err)
	assert.Equal(t, "Sam R.", u.DisplayName)
}

func TestSetAvatar(t *testing.T) {
	accounts, avatars := newAccounts(t)
	ctx := context.Background()
	sam, err := accounts.Signup(ctx, "sam@campus.edu", testPassword, "Sam")
	require.NoError(t, err)

	u, err := accounts.SetAvatar(ctx, sam.ID, "image/png", ".png", strings.NewReader("png"))
	require.NoError(t, err)
	require.Len(t, avatars.keys, 1)
	assert.Equal(t, "https://cdn.test/"+avatars.keys[0], u.AvatarURL)

	_, err = accounts.SetAvatar(ctx, uuid.New(), "image/png", ".png", strings.NewReader("png"))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAccounts_ProviderOutagesAreUpstream(t *testing.T) {
	ctx := context.Background()
	down := errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")
	accounts := NewAccountService(downUsers{err: down}, &fakeStore{}, zap.NewNop())
	accounts.retry.MaxTries = 1

	_, err := accounts.Signup(ctx, "sam@campus.edu", testPassword, "Sam")
	assert.Equal(t, KindUpstream, KindOf(err))
	_, err = accounts.Authenticate(ctx, "sam@campus.edu", testPassword)
	assert.Equal(t, KindUpstream, KindOf(err))
	_, err = accounts.Get(ctx, uuid.New())
	assert.Equal(t, KindUpstream, KindOf(err))
	_, err = accounts.UpdateSettings(ctx, uuid.New(), SettingsUpdate{DisplayName: strPtr("Sam")})
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.ErrorIs(t, err, down)

	healthy, _ := newAccounts(t)
	sam, err := healthy.Signup(ctx, "sam@campus.edu", testPassword, "Sam")
	require.NoError(t, err)
	healthy.avatars = &fakeStore{err: errors.New("s3: connection refused")}
	_, err = healthy.SetAvatar(ctx, sam.ID, "image/png", ".png", strings.NewReader("png"))
	assert.Equal(t, KindUpstream, KindOf(err))
}

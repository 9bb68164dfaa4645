package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, display_name, avatar_url, password_hash, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row. Postgres generates the UUID and timestamp.
func (s *UserStore) Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, email, displayName, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail is used for login.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) Update(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	// COALESCE keeps the current value for every field left nil.
	query := `
		UPDATE users
		SET display_name  = COALESCE($2, display_name),
		    avatar_url    = COALESCE($3, avatar_url),
		    email         = COALESCE($4, email),
		    password_hash = COALESCE($5, password_hash)
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		userID, upd.DisplayName, upd.AvatarURL, upd.Email, upd.PasswordHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

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

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

const chatColumns = `id, participant_a, participant_b, ride_id, created_at, updated_at`

func scanChat(row pgx.Row) (*models.ChatRoom, error) {
	var ch models.ChatRoom
	err := row.Scan(
		&ch.ID,
		&ch.ParticipantA,
		&ch.ParticipantB,
		&ch.RideID,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetOrCreate is an upsert on the ordered pair. ON CONFLICT DO NOTHING
// returns no row when the pair already exists, in which case the surviving
// row is read back. Concurrent callers all end up with the same room and
// its first ride reference.
func (s *ChatStore) GetOrCreate(ctx context.Context, a, b uuid.UUID, rideID *uuid.UUID) (*models.ChatRoom, bool, error) {
	insert := `
		INSERT INTO chats (participant_a, participant_b, ride_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_a, participant_b) DO NOTHING
		RETURNING ` + chatColumns

	ch, err := scanChat(s.pool.QueryRow(ctx, insert, a, b, rideID))
	if err == nil {
		return ch, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		if isForeignKeyViolation(err) {
			return nil, false, repository.ErrNotFound
		}
		return nil, false, fmt.Errorf("insert chat: %w", err)
	}

	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE participant_a = $1 AND participant_b = $2`

	ch, err = scanChat(s.pool.QueryRow(ctx, query, a, b))
	if err != nil {
		return nil, false, fmt.Errorf("get existing chat: %w", err)
	}
	return ch, false, nil
}

func (s *ChatStore) GetByID(ctx context.Context, chatID uuid.UUID) (*models.ChatRoom, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE id = $1`

	ch, err := scanChat(s.pool.QueryRow(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return ch, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRoomView, error) {
	query := `
		SELECT c.id, c.participant_a, c.participant_b, c.ride_id, c.created_at, c.updated_at,
		       u.id, u.display_name, u.avatar_url
		FROM chats c
		JOIN users u
		  ON u.id = CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END
		WHERE c.participant_a = $1 OR c.participant_b = $1
		ORDER BY c.updated_at DESC, c.id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.ChatRoomView, 0)
	for rows.Next() {
		var v models.ChatRoomView
		if err := rows.Scan(
			&v.ID,
			&v.ParticipantA,
			&v.ParticipantB,
			&v.RideID,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.OtherUserID,
			&v.OtherUserName,
			&v.OtherAvatarURL,
		); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	return chats, nil
}

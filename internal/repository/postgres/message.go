package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create appends the message and bumps chats.updated_at in one statement,
// then joins the sender's display name so the caller can broadcast the
// stored row as is.
func (s *MessageStore) Create(ctx context.Context, chatID, senderID uuid.UUID, content string) (*models.Message, error) {
	query := `
		WITH m AS (
			INSERT INTO messages (chat_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, chat_id, sender_id, content, created_at
		), touched AS (
			UPDATE chats SET updated_at = now() WHERE id = $1
		)
		SELECT m.id, m.chat_id, m.sender_id, u.display_name, m.content, m.created_at
		FROM m JOIN users u ON u.id = m.sender_id`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, chatID, senderID, content).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListByChat returns the whole history oldest first. The bigserial id
// breaks ties between rows sharing a created_at.
func (s *MessageStore) ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT m.id, m.chat_id, m.sender_id, u.display_name, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

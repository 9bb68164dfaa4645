package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
	"github.com/lalith-99/campusride/internal/retry"
	"go.uber.org/zap"
)

const maxMessageLen = 4000

// ChatService is the chat room registry plus message persistence. It is the
// only path by which messages are written.
type ChatService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	rides    repository.RideRepository
	retry    retry.Policy
	logger   *zap.Logger
}

func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	rides repository.RideRepository,
	logger *zap.Logger,
) *ChatService {
	p := retry.Default()
	p.OnRetry = func(err error, wait time.Duration) {
		logger.Warn("retrying chat read", zap.Error(err), zap.Duration("wait", wait))
	}
	return &ChatService{
		chats:    chats,
		messages: messages,
		users:    users,
		rides:    rides,
		retry:    p,
		logger:   logger,
	}
}

// GetOrCreateRoom returns the one room for the unordered pair (userID,
// otherID). The ride reference is only stored when the room is created;
// later calls naming a different ride get the existing room unchanged.
func (s *ChatService) GetOrCreateRoom(ctx context.Context, userID, otherID uuid.UUID, rideID *uuid.UUID) (*models.ChatRoom, bool, error) {
	if userID == otherID {
		return nil, false, Validation("self_chat", "cannot open a chat with yourself")
	}

	other, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.User, error) {
		return s.users.GetByID(ctx, otherID)
	})
	if err != nil {
		return nil, false, Upstream("get user", err)
	}
	if other == nil {
		return nil, false, ErrUserNotFound
	}

	if rideID != nil {
		ride, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.Ride, error) {
			return s.rides.GetByID(ctx, *rideID)
		})
		if err != nil {
			return nil, false, Upstream("get ride", err)
		}
		if ride == nil {
			return nil, false, ErrRideNotFound
		}
	}

	a, b := models.OrderPair(userID, otherID)
	room, created, err := s.chats.GetOrCreate(ctx, a, b, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, Upstream("get or create chat", err)
	}

	if created {
		s.logger.Info("chat created",
			zap.String("chat_id", room.ID.String()),
			zap.String("participant_a", a.String()),
			zap.String("participant_b", b.String()),
		)
	}
	return room, created, nil
}

func (s *ChatService) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRoomView, error) {
	rooms, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]models.ChatRoomView, error) {
		return s.chats.ListForUser(ctx, userID)
	})
	if err != nil {
		return nil, Upstream("list chats", err)
	}
	return rooms, nil
}

// Room returns the room if userID is one of its two participants.
func (s *ChatService) Room(ctx context.Context, roomID, userID uuid.UUID) (*models.ChatRoom, error) {
	room, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.ChatRoom, error) {
		return s.chats.GetByID(ctx, roomID)
	})
	if err != nil {
		return nil, Upstream("get chat", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

// FetchHistory returns every message in the room, oldest first.
func (s *ChatService) FetchHistory(ctx context.Context, roomID, userID uuid.UUID) ([]models.Message, error) {
	if _, err := s.Room(ctx, roomID, userID); err != nil {
		return nil, err
	}

	msgs, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]models.Message, error) {
		return s.messages.ListByChat(ctx, roomID)
	})
	if err != nil {
		return nil, Upstream("list messages", err)
	}
	return msgs, nil
}

// PostMessage persists a message. It does not broadcast; the relay does
// that with the returned row once this succeeds.
func (s *ChatService) PostMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Validation("content_required", "message content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		return nil, Validation("content_too_long", "message is too long")
	}

	if _, err := s.Room(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, roomID, senderID, content)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, Upstream("insert message", err)
	}
	return msg, nil
}

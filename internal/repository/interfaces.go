package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
)

// Persistence-level outcomes. Stores report constraint and conditional
// update results through these so callers never inspect driver errors.
var (
	// ErrNotFound is returned by mutations whose target row is missing.
	// Plain lookups return nil, nil instead.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means a uniqueness constraint rejected the insert.
	ErrDuplicate = errors.New("duplicate")

	// ErrNoSeats means the conditional seat decrement matched no row.
	ErrNoSeats = errors.New("no seats left")

	// ErrRideCompleted means the ride is frozen.
	ErrRideCompleted = errors.New("ride completed")
)

// Every method takes ctx first so request deadlines reach the database.

// UserRepository handles accounts and profiles.
type UserRepository interface {
	// Create inserts a user. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error)

	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail returns nil, nil if not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update applies the non-nil fields and returns the new row, or nil, nil
	// if the user does not exist. Returns ErrDuplicate if a new email is taken.
	Update(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
}

// RideRepository handles ride postings.
type RideRepository interface {
	// Create inserts an open ride with SeatsLeft = in.Seats.
	Create(ctx context.Context, driverID uuid.UUID, in models.NewRide) (*models.Ride, error)

	// GetByID returns nil, nil if not found. DriverName is populated.
	GetByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)

	// ListOpen returns incomplete rides with free seats, soonest first.
	ListOpen(ctx context.Context, filter models.RideFilter) ([]models.Ride, error)

	// ListByDriver returns every ride the user posted, soonest first.
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error)

	// MarkCompleted flips is_completed for the driver's ride. It reports
	// false when no row changed (missing, someone else's, or already done).
	MarkCompleted(ctx context.Context, rideID, driverID uuid.UUID) (bool, error)
}

// PassengerRepository is the passenger ledger.
type PassengerRepository interface {
	// Join inserts the (ride, passenger) link and takes one seat, atomically.
	// Checks run in this order: ErrNotFound, ErrRideCompleted, ErrNoSeats,
	// ErrDuplicate. Returns the ride after the decrement.
	Join(ctx context.Context, rideID, passengerID uuid.UUID) (*models.Ride, error)

	IsPassenger(ctx context.Context, rideID, userID uuid.UUID) (bool, error)

	// ListPassengers returns a ride's passengers in join order.
	ListPassengers(ctx context.Context, rideID uuid.UUID) ([]models.PassengerLink, error)

	// ListRidesForPassenger returns every ride the user joined, each flagged
	// with whether the user has rated it.
	ListRidesForPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.PassengerRide, error)
}

// RatingRepository is the rating ledger. Aggregates are computed on read.
type RatingRepository interface {
	// Create returns ErrDuplicate if the rater already rated the ride.
	Create(ctx context.Context, in models.NewRating) (*models.Rating, error)

	// ListByRide returns a ride's ratings newest first, with rater names.
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Rating, error)

	// ListByRater returns the ratings a user has written, newest first.
	ListByRater(ctx context.Context, raterID uuid.UUID) ([]models.Rating, error)

	SummaryForRide(ctx context.Context, rideID uuid.UUID) (models.RatingSummary, error)
	SummaryForDriver(ctx context.Context, driverID uuid.UUID) (models.RatingSummary, error)
}

// ChatRepository is the chat room registry.
type ChatRepository interface {
	// GetOrCreate upserts the room for an already ordered pair (a < b).
	// The bool reports whether this call created the room. An existing
	// room keeps its original ride reference.
	GetOrCreate(ctx context.Context, a, b uuid.UUID, rideID *uuid.UUID) (*models.ChatRoom, bool, error)

	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, chatID uuid.UUID) (*models.ChatRoom, error)

	// ListForUser returns the user's rooms, most recently updated first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRoomView, error)
}

// MessageRepository handles chat message persistence.
type MessageRepository interface {
	// Create appends a message, bumps the room's updated_at and returns the
	// stored row with SenderName filled in.
	Create(ctx context.Context, chatID, senderID uuid.UUID, content string) (*models.Message, error)

	// ListByChat returns the full history in ascending (created_at, id).
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
}

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a registered student account. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileUpdate carries the optional account fields that can change after
// signup. A nil field is left untouched.
type ProfileUpdate struct {
	DisplayName  *string
	AvatarURL    *string
	Email        *string
	PasswordHash *string
}

// Category classifies a ride posting.
type Category string

const (
	CategoryAirport         Category = "Airport"
	CategoryOutdoorActivity Category = "OutdoorActivity"
	CategoryEvent           Category = "Event"
	CategoryOther           Category = "Other"
)

// ParseCategory accepts the stored form of a category as well as the
// display form ("Outdoor Activity"), case-insensitively.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch key {
	case "airport":
		return CategoryAirport, true
	case "outdooractivity":
		return CategoryOutdoorActivity, true
	case "event":
		return CategoryEvent, true
	case "other":
		return CategoryOther, true
	}
	return "", false
}

// Ride is a posted trip. Only the remaining seat count is tracked.
//
// SeatsLeft never goes negative, and once IsCompleted is true neither
// SeatsLeft nor the passenger list changes again.
type Ride struct {
	ID                 uuid.UUID `json:"id"`
	DriverID           uuid.UUID `json:"driver_id"`
	DriverName         string    `json:"driver_name,omitempty"`
	StartingLocation   string    `json:"starting_location"`
	Destination        string    `json:"destination"`
	DestinationAddress string    `json:"destination_address,omitempty"`
	ScheduledAt        time.Time `json:"scheduled_at"`
	Category           Category  `json:"category"`
	SeatsLeft          int       `json:"seats_left"`
	Description        string    `json:"description,omitempty"`
	IsCompleted        bool      `json:"is_completed"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewRide holds the driver-supplied fields of a ride posting.
type NewRide struct {
	StartingLocation   string
	Destination        string
	DestinationAddress string
	ScheduledAt        time.Time
	Category           Category
	Seats              int
	Description        string
}

// RideFilter narrows the open-ride listing. Query matches destination or
// starting location, case-insensitively.
type RideFilter struct {
	Query    string
	Category Category
	Limit    int
}

// PassengerLink records one user occupying one seat on a ride.
type PassengerLink struct {
	RideID        uuid.UUID `json:"ride_id"`
	PassengerID   uuid.UUID `json:"passenger_id"`
	PassengerName string    `json:"passenger_name,omitempty"`
	JoinedAt      time.Time `json:"joined_at"`
}

// PassengerRide is a ride seen from a passenger's side, with whether that
// passenger has already rated it.
type PassengerRide struct {
	Ride
	Rated bool `json:"rated"`
}

// Rating is a passenger's 1-5 score for a completed ride's driver.
type Rating struct {
	ID        uuid.UUID `json:"id"`
	RideID    uuid.UUID `json:"ride_id"`
	DriverID  uuid.UUID `json:"driver_id"`
	RaterID   uuid.UUID `json:"rater_id"`
	RaterName string    `json:"rater_name,omitempty"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRating is the insert shape for Rating.
type NewRating struct {
	RideID   uuid.UUID
	DriverID uuid.UUID
	RaterID  uuid.UUID
	Score    int
	Comment  string
}

// RatingSummary is an aggregate computed on read.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ChatRoom is the single conversation between two users. ParticipantA always
// sorts before ParticipantB (see OrderPair).
type ChatRoom struct {
	ID           uuid.UUID  `json:"id"`
	ParticipantA uuid.UUID  `json:"participant_a"`
	ParticipantB uuid.UUID  `json:"participant_b"`
	RideID       *uuid.UUID `json:"ride_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (r *ChatRoom) HasParticipant(userID uuid.UUID) bool {
	return r.ParticipantA == userID || r.ParticipantB == userID
}

// Other returns the participant that is not userID.
func (r *ChatRoom) Other(userID uuid.UUID) uuid.UUID {
	if r.ParticipantA == userID {
		return r.ParticipantB
	}
	return r.ParticipantA
}

// ChatRoomView is a room annotated with the other participant, as seen by
// one of the two users.
type ChatRoomView struct {
	ChatRoom
	OtherUserID    uuid.UUID `json:"other_user_id"`
	OtherUserName  string    `json:"other_user_name"`
	OtherAvatarURL string    `json:"other_avatar_url,omitempty"`
}

// Message is one chat line. IDs come from a single sequence, so they break
// ties between messages sharing a creation timestamp.
type Message struct {
	ID         int64     `json:"id"`
	ChatID     uuid.UUID `json:"chat_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderPair returns the two ids in canonical storage order.
func OrderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if b.String() < a.String() {
		return b, a
	}
	return a, b
}

package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// schema is applied statement by statement on startup. Every statement is
// idempotent. The ride and rating invariants live here as constraints:
//   - rides.seats_left >= 0
//   - ride_passengers primary key (ride_id, passenger_id)
//   - ratings unique (ride_id, rater_id), score between 1 and 5
//   - chats unique (participant_a, participant_b) with participant_a < participant_b
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		email         text NOT NULL UNIQUE,
		display_name  text NOT NULL,
		avatar_url    text NOT NULL DEFAULT '',
		password_hash text NOT NULL,
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rides (
		id                  uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		driver_id           uuid NOT NULL REFERENCES users(id),
		starting_location   text NOT NULL DEFAULT '',
		destination         text NOT NULL,
		destination_address text NOT NULL DEFAULT '',
		scheduled_at        timestamptz NOT NULL,
		category            text NOT NULL DEFAULT 'Other'
			CHECK (category IN ('Airport', 'OutdoorActivity', 'Event', 'Other')),
		seats_left          integer NOT NULL CHECK (seats_left >= 0),
		description         text NOT NULL DEFAULT '',
		is_completed        boolean NOT NULL DEFAULT false,
		created_at          timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rides_driver ON rides (driver_id)`,
	`CREATE INDEX IF NOT EXISTS idx_rides_open ON rides (scheduled_at) WHERE NOT is_completed`,
	`CREATE TABLE IF NOT EXISTS ride_passengers (
		ride_id      uuid NOT NULL REFERENCES rides(id),
		passenger_id uuid NOT NULL REFERENCES users(id),
		joined_at    timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (ride_id, passenger_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ride_passengers_passenger ON ride_passengers (passenger_id)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		ride_id    uuid NOT NULL REFERENCES rides(id),
		driver_id  uuid NOT NULL REFERENCES users(id),
		rater_id   uuid NOT NULL REFERENCES users(id),
		score      integer NOT NULL CHECK (score BETWEEN 1 AND 5),
		comment    text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (ride_id, rater_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ratings_driver ON ratings (driver_id)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		participant_a uuid NOT NULL REFERENCES users(id),
		participant_b uuid NOT NULL REFERENCES users(id),
		ride_id       uuid REFERENCES rides(id),
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now(),
		CHECK (participant_a < participant_b),
		UNIQUE (participant_a, participant_b)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chats_participant_b ON chats (participant_b)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         bigserial PRIMARY KEY,
		chat_id    uuid NOT NULL REFERENCES chats(id),
		sender_id  uuid NOT NULL REFERENCES users(id),
		content    text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at, id)`,
}

// Migrate creates any missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	db.logger.Info("schema up to date", zap.Int("statements", len(schema)))
	return nil
}

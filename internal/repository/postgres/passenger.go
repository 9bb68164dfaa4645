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

type PassengerStore struct {
	pool *pgxpool.Pool
}

func NewPassengerStore(pool *pgxpool.Pool) *PassengerStore {
	return &PassengerStore{pool: pool}
}

// Join takes a seat inside one transaction:
//
//  1. lock the ride row (FOR UPDATE) so joins on the same ride serialize
//  2. insert the passenger link; the primary key rejects a second join
//  3. decrement seats_left only if a seat is still free
//
// Any failure rolls the whole thing back, so a link never exists without
// its seat and a seat is never taken twice.
func (s *PassengerStore) Join(ctx context.Context, rideID, passengerID uuid.UUID) (*models.Ride, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin join: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		seatsLeft int
		completed bool
	)
	err = tx.QueryRow(ctx, `
		SELECT seats_left, is_completed
		FROM rides
		WHERE id = $1
		FOR UPDATE`, rideID).Scan(&seatsLeft, &completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("lock ride: %w", err)
	}
	if completed {
		return nil, repository.ErrRideCompleted
	}
	if seatsLeft <= 0 {
		return nil, repository.ErrNoSeats
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride_passengers (ride_id, passenger_id)
		VALUES ($1, $2)`, rideID, passengerID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, repository.ErrDuplicate
		case isForeignKeyViolation(err):
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("insert passenger: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET seats_left = seats_left - 1
		WHERE id = $1 AND seats_left > 0 AND NOT is_completed`, rideID)
	if err != nil {
		return nil, fmt.Errorf("take seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNoSeats
	}

	ride, err := scanRide(tx.QueryRow(ctx, `
		SELECT `+rideColumns+`
		FROM rides r JOIN users u ON u.id = r.driver_id
		WHERE r.id = $1`, rideID))
	if err != nil {
		return nil, fmt.Errorf("reload ride: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit join: %w", err)
	}
	return ride, nil
}

func (s *PassengerStore) IsPassenger(ctx context.Context, rideID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ride_passengers
			WHERE ride_id = $1 AND passenger_id = $2
		)`

	var exists bool
	err := s.pool.QueryRow(ctx, query, rideID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check passenger: %w", err)
	}
	return exists, nil
}

func (s *PassengerStore) ListPassengers(ctx context.Context, rideID uuid.UUID) ([]models.PassengerLink, error) {
	query := `
		SELECT p.ride_id, p.passenger_id, u.display_name, p.joined_at
		FROM ride_passengers p
		JOIN users u ON u.id = p.passenger_id
		WHERE p.ride_id = $1
		ORDER BY p.joined_at ASC`

	rows, err := s.pool.Query(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("list passengers: %w", err)
	}
	defer rows.Close()

	links := make([]models.PassengerLink, 0)
	for rows.Next() {
		var l models.PassengerLink
		if err := rows.Scan(&l.RideID, &l.PassengerID, &l.PassengerName, &l.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan passenger: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passengers: %w", err)
	}

	return links, nil
}

func (s *PassengerStore) ListRidesForPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.PassengerRide, error) {
	query := `
		SELECT ` + rideColumns + `,
		       EXISTS (
		           SELECT 1 FROM ratings rt
		           WHERE rt.ride_id = r.id AND rt.rater_id = $1
		       )
		FROM ride_passengers p
		JOIN rides r ON r.id = p.ride_id
		JOIN users u ON u.id = r.driver_id
		WHERE p.passenger_id = $1
		ORDER BY r.scheduled_at ASC, r.id`

	rows, err := s.pool.Query(ctx, query, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list passenger rides: %w", err)
	}
	defer rows.Close()

	rides := make([]models.PassengerRide, 0)
	for rows.Next() {
		var rated bool
		r, err := scanRide(rows, &rated)
		if err != nil {
			return nil, fmt.Errorf("scan passenger ride: %w", err)
		}
		rides = append(rides, models.PassengerRide{Ride: *r, Rated: rated})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passenger rides: %w", err)
	}

	return rides, nil
}

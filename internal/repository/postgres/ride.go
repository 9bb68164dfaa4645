package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type RideStore struct {
	pool *pgxpool.Pool
}

func NewRideStore(pool *pgxpool.Pool) *RideStore {
	return &RideStore{pool: pool}
}

// rideColumns expects rides aliased as r and the driver's users row as u.
const rideColumns = `
	r.id, r.driver_id, u.display_name, r.starting_location, r.destination,
	r.destination_address, r.scheduled_at, r.category, r.seats_left,
	r.description, r.is_completed, r.created_at`

// scanRide reads rideColumns followed by any extra selected columns.
func scanRide(row pgx.Row, extra ...any) (*models.Ride, error) {
	var (
		r        models.Ride
		category string
	)
	dest := []any{
		&r.ID,
		&r.DriverID,
		&r.DriverName,
		&r.StartingLocation,
		&r.Destination,
		&r.DestinationAddress,
		&r.ScheduledAt,
		&category,
		&r.SeatsLeft,
		&r.Description,
		&r.IsCompleted,
		&r.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.Category = models.Category(category)
	return &r, nil
}

func collectRides(rows pgx.Rows) ([]models.Ride, error) {
	defer rows.Close()

	rides := make([]models.Ride, 0)
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rides: %w", err)
	}
	return rides, nil
}

func (s *RideStore) Create(ctx context.Context, driverID uuid.UUID, in models.NewRide) (*models.Ride, error) {
	query := `
		WITH r AS (
			INSERT INTO rides (driver_id, starting_location, destination, destination_address,
			                   scheduled_at, category, seats_left, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		)
		SELECT ` + rideColumns + `
		FROM r JOIN users u ON u.id = r.driver_id`

	r, err := scanRide(s.pool.QueryRow(ctx, query,
		driverID,
		in.StartingLocation,
		in.Destination,
		in.DestinationAddress,
		in.ScheduledAt,
		string(in.Category),
		in.Seats,
		in.Description,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("insert ride: %w", err)
	}
	return r, nil
}

func (s *RideStore) GetByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides r JOIN users u ON u.id = r.driver_id
		WHERE r.id = $1`

	r, err := scanRide(s.pool.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return r, nil
}

func (s *RideStore) ListOpen(ctx context.Context, filter models.RideFilter) ([]models.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides r JOIN users u ON u.id = r.driver_id
		WHERE NOT r.is_completed
		  AND r.seats_left > 0
		  AND ($1 = '' OR r.destination ILIKE $1 OR r.starting_location ILIKE $1)
		  AND ($2 = '' OR r.category = $2)
		ORDER BY r.scheduled_at ASC, r.id
		LIMIT $3`

	pattern := ""
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern = "%" + escapeLike(q) + "%"
	}

	rows, err := s.pool.Query(ctx, query, pattern, string(filter.Category), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list open rides: %w", err)
	}
	return collectRides(rows)
}

func (s *RideStore) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides r JOIN users u ON u.id = r.driver_id
		WHERE r.driver_id = $1
		ORDER BY r.scheduled_at ASC, r.id`

	rows, err := s.pool.Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("list driver rides: %w", err)
	}
	return collectRides(rows)
}

// MarkCompleted is a conditional update, so a retried call never applies
// twice: the second one matches no row.
func (s *RideStore) MarkCompleted(ctx context.Context, rideID, driverID uuid.UUID) (bool, error) {
	query := `
		UPDATE rides
		SET is_completed = true
		WHERE id = $1 AND driver_id = $2 AND NOT is_completed`

	tag, err := s.pool.Exec(ctx, query, rideID, driverID)
	if err != nil {
		return false, fmt.Errorf("complete ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

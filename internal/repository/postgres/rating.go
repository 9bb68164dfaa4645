package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

// Create relies on UNIQUE (ride_id, rater_id); there is no pre-check.
func (s *RatingStore) Create(ctx context.Context, in models.NewRating) (*models.Rating, error) {
	query := `
		WITH rt AS (
			INSERT INTO ratings (ride_id, driver_id, rater_id, score, comment)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT rt.id, rt.ride_id, rt.driver_id, rt.rater_id, u.display_name,
		       rt.score, rt.comment, rt.created_at
		FROM rt JOIN users u ON u.id = rt.rater_id`

	var r models.Rating
	err := s.pool.QueryRow(ctx, query, in.RideID, in.DriverID, in.RaterID, in.Score, in.Comment).Scan(
		&r.ID,
		&r.RideID,
		&r.DriverID,
		&r.RaterID,
		&r.RaterName,
		&r.Score,
		&r.Comment,
		&r.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, repository.ErrDuplicate
		case isForeignKeyViolation(err):
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("insert rating: %w", err)
	}
	return &r, nil
}

func (s *RatingStore) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Rating, error) {
	return s.list(ctx, `rt.ride_id = $1`, rideID)
}

func (s *RatingStore) ListByRater(ctx context.Context, raterID uuid.UUID) ([]models.Rating, error) {
	return s.list(ctx, `rt.rater_id = $1`, raterID)
}

func (s *RatingStore) list(ctx context.Context, where string, id uuid.UUID) ([]models.Rating, error) {
	query := `
		SELECT rt.id, rt.ride_id, rt.driver_id, rt.rater_id, u.display_name,
		       rt.score, rt.comment, rt.created_at
		FROM ratings rt
		JOIN users u ON u.id = rt.rater_id
		WHERE ` + where + `
		ORDER BY rt.created_at DESC, rt.id`

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]models.Rating, 0)
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(
			&r.ID,
			&r.RideID,
			&r.DriverID,
			&r.RaterID,
			&r.RaterName,
			&r.Score,
			&r.Comment,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}

	return ratings, nil
}

func (s *RatingStore) SummaryForRide(ctx context.Context, rideID uuid.UUID) (models.RatingSummary, error) {
	return s.summary(ctx, `SELECT COALESCE(AVG(score), 0)::float8, COUNT(*) FROM ratings WHERE ride_id = $1`, rideID)
}

func (s *RatingStore) SummaryForDriver(ctx context.Context, driverID uuid.UUID) (models.RatingSummary, error) {
	return s.summary(ctx, `SELECT COALESCE(AVG(score), 0)::float8, COUNT(*) FROM ratings WHERE driver_id = $1`, driverID)
}

func (s *RatingStore) summary(ctx context.Context, query string, id uuid.UUID) (models.RatingSummary, error) {
	var (
		sum   models.RatingSummary
		count int64
	)
	if err := s.pool.QueryRow(ctx, query, id).Scan(&sum.Average, &count); err != nil {
		return models.RatingSummary{}, fmt.Errorf("rating summary: %w", err)
	}
	sum.Count = int(count)
	return sum, nil
}

package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type RatingStore struct {
	db *DB
}

func NewRatingStore(db *DB) *RatingStore {
	return &RatingStore{db: db}
}

func (s *RatingStore) Create(_ context.Context, in models.NewRating) (*models.Rating, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := passengerKey{rideID: in.RideID, passengerID: in.RaterID}
	if _, dup := s.db.rated[key]; dup {
		return nil, repository.ErrDuplicate
	}
	if _, ok := s.db.rides[in.RideID]; !ok {
		return nil, repository.ErrNotFound
	}

	r := models.Rating{
		ID:        uuid.New(),
		RideID:    in.RideID,
		DriverID:  in.DriverID,
		RaterID:   in.RaterID,
		RaterName: s.db.displayName(in.RaterID),
		Score:     in.Score,
		Comment:   in.Comment,
		CreatedAt: s.db.now(),
	}
	s.db.ratings = append(s.db.ratings, r)
	s.db.rated[key] = struct{}{}
	return &r, nil
}

func (s *RatingStore) ListByRide(_ context.Context, rideID uuid.UUID) ([]models.Rating, error) {
	return s.list(func(r models.Rating) bool { return r.RideID == rideID }), nil
}

func (s *RatingStore) ListByRater(_ context.Context, raterID uuid.UUID) ([]models.Rating, error) {
	return s.list(func(r models.Rating) bool { return r.RaterID == raterID }), nil
}

// list walks the append-only slice backwards, which is newest first.
func (s *RatingStore) list(match func(models.Rating) bool) []models.Rating {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Rating, 0)
	for i := len(s.db.ratings) - 1; i >= 0; i-- {
		r := s.db.ratings[i]
		if match(r) {
			r.RaterName = s.db.displayName(r.RaterID)
			out = append(out, r)
		}
	}
	return out
}

func (s *RatingStore) SummaryForRide(_ context.Context, rideID uuid.UUID) (models.RatingSummary, error) {
	return s.summary(func(r models.Rating) bool { return r.RideID == rideID }), nil
}

func (s *RatingStore) SummaryForDriver(_ context.Context, driverID uuid.UUID) (models.RatingSummary, error) {
	return s.summary(func(r models.Rating) bool { return r.DriverID == driverID }), nil
}

func (s *RatingStore) summary(match func(models.Rating) bool) models.RatingSummary {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var total, count int
	for _, r := range s.db.ratings {
		if match(r) {
			total += r.Score
			count++
		}
	}
	if count == 0 {
		return models.RatingSummary{}
	}
	return models.RatingSummary{Average: float64(total) / float64(count), Count: count}
}

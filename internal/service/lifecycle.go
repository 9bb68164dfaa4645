package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
	"github.com/lalith-99/campusride/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxCommentLen    = 1000
)

// RideService enforces the ride state machine:
//
//	Open (seats_left > 0) -> Full (seats_left == 0) -> Completed
//
// Open and Full both accept CompleteRide; only Completed accepts ratings.
// Nothing leaves Completed.
type RideService struct {
	rides      repository.RideRepository
	passengers repository.PassengerRepository
	ratings    repository.RatingRepository
	users      repository.UserRepository
	retry      retry.Policy
	logger     *zap.Logger
}

func NewRideService(
	rides repository.RideRepository,
	passengers repository.PassengerRepository,
	ratings repository.RatingRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) *RideService {
	p := retry.Default()
	p.OnRetry = func(err error, wait time.Duration) {
		logger.Warn("retrying ride read", zap.Error(err), zap.Duration("wait", wait))
	}
	return &RideService{
		rides:      rides,
		passengers: passengers,
		ratings:    ratings,
		users:      users,
		retry:      p,
		logger:     logger,
	}
}

// JoinResult is the authoritative ride state after a join. RideFull tells
// the client no further joins are possible.
type JoinResult struct {
	Ride     *models.Ride `json:"ride"`
	RideFull bool         `json:"ride_full"`
}

// UserRides partitions a user's rides into disjoint sets.
type UserRides struct {
	Driving []models.Ride `json:"driving"`
	Driven  []models.Ride `json:"driven"`
	Joined  []models.Ride `json:"joined"`
	ToRate  []models.Ride `json:"to_rate"`
	Rated   []models.Ride `json:"rated"`
}

// RideDetail is everything the ride page shows.
type RideDetail struct {
	Ride       *models.Ride           `json:"ride"`
	Passengers []models.PassengerLink `json:"passengers"`
	Ratings    []models.Rating        `json:"ratings"`
	Summary    models.RatingSummary   `json:"rating_summary"`
}

// RideRatings is a ride's rating list with its aggregate.
type RideRatings struct {
	Summary models.RatingSummary `json:"summary"`
	Ratings []models.Rating      `json:"ratings"`
}

func (s *RideService) CreateRide(ctx context.Context, driverID uuid.UUID, in models.NewRide) (*models.Ride, error) {
	in.Destination = strings.TrimSpace(in.Destination)
	in.StartingLocation = strings.TrimSpace(in.StartingLocation)
	in.DestinationAddress = strings.TrimSpace(in.DestinationAddress)
	in.Description = strings.TrimSpace(in.Description)

	if in.Destination == "" {
		return nil, Validation("destination_required", "destination is required")
	}
	if in.ScheduledAt.IsZero() {
		return nil, Validation("scheduled_at_required", "scheduled_at is required")
	}
	if in.Seats < 1 {
		return nil, Validation("seats_invalid", "seats must be at least 1")
	}
	if in.Category == "" {
		in.Category = models.CategoryOther
	} else {
		c, ok := models.ParseCategory(string(in.Category))
		if !ok {
			return nil, Validation("category_invalid", "category must be one of Airport, OutdoorActivity, Event, Other")
		}
		in.Category = c
	}

	ride, err := s.rides.Create(ctx, driverID, in)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Upstream("create ride", err)
	}

	s.logger.Info("ride created",
		zap.String("ride_id", ride.ID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int("seats", ride.SeatsLeft),
	)
	return ride, nil
}

// JoinRide takes one seat for userID. The seat decrement and passenger link
// are one atomic step in the store, so of two concurrent joins for the last
// seat exactly one succeeds.
func (s *RideService) JoinRide(ctx context.Context, rideID, userID uuid.UUID) (*JoinResult, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID == userID {
		return nil, ErrDriverCannotJoin
	}

	updated, err := s.passengers.Join(ctx, rideID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRideNotFound
		case errors.Is(err, repository.ErrRideCompleted):
			return nil, ErrAlreadyCompleted
		case errors.Is(err, repository.ErrNoSeats):
			return nil, ErrNoSeatsAvailable
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrAlreadyJoined
		}
		return nil, Upstream("join ride", err)
	}

	s.logger.Info("ride joined",
		zap.String("ride_id", rideID.String()),
		zap.String("passenger_id", userID.String()),
		zap.Int("seats_left", updated.SeatsLeft),
	)
	return &JoinResult{Ride: updated, RideFull: updated.SeatsLeft == 0}, nil
}

// CompleteRide is one-way. A retry after success reports
// ErrAlreadyCompleted instead of applying again.
func (s *RideService) CompleteRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrNotDriver
	}
	if ride.IsCompleted {
		return nil, ErrAlreadyCompleted
	}

	changed, err := s.rides.MarkCompleted(ctx, rideID, driverID)
	if err != nil {
		return nil, Upstream("complete ride", err)
	}
	if !changed {
		// Lost a race with another completion of the same ride.
		return nil, ErrAlreadyCompleted
	}

	ride.IsCompleted = true
	s.logger.Info("ride completed", zap.String("ride_id", rideID.String()))
	return ride, nil
}

func (s *RideService) SubmitRating(ctx context.Context, rideID, raterID uuid.UUID, score int, comment string) (*models.Rating, error) {
	if score < 1 || score > 5 {
		return nil, Validation("score_out_of_range", "score must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLen {
		return nil, Validation("comment_too_long", "comment is too long")
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsCompleted {
		return nil, ErrNotCompleted
	}
	if ride.DriverID == raterID {
		return nil, ErrSelfRating
	}

	joined, err := s.passengers.IsPassenger(ctx, rideID, raterID)
	if err != nil {
		return nil, Upstream("check passenger", err)
	}
	if !joined {
		return nil, ErrNotPassenger
	}

	rating, err := s.ratings.Create(ctx, models.NewRating{
		RideID:   rideID,
		DriverID: ride.DriverID,
		RaterID:  raterID,
		Score:    score,
		Comment:  comment,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateRating
		}
		return nil, Upstream("create rating", err)
	}

	s.logger.Info("ride rated",
		zap.String("ride_id", rideID.String()),
		zap.String("rater_id", raterID.String()),
		zap.Int("score", score),
	)
	return rating, nil
}

// ListRidesForUser runs the driver-side and passenger-side reads
// concurrently and partitions the results.
func (s *RideService) ListRidesForUser(ctx context.Context, userID uuid.UUID) (*UserRides, error) {
	var (
		driven []models.Ride
		joined []models.PassengerRide
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		driven, err = retry.Do(gctx, s.retry, func(ctx context.Context) ([]models.Ride, error) {
			return s.rides.ListByDriver(ctx, userID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		joined, err = retry.Do(gctx, s.retry, func(ctx context.Context) ([]models.PassengerRide, error) {
			return s.passengers.ListRidesForPassenger(ctx, userID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Upstream("list rides for user", err)
	}

	out := &UserRides{
		Driving: make([]models.Ride, 0),
		Driven:  make([]models.Ride, 0),
		Joined:  make([]models.Ride, 0),
		ToRate:  make([]models.Ride, 0),
		Rated:   make([]models.Ride, 0),
	}
	for _, r := range driven {
		if r.IsCompleted {
			out.Driven = append(out.Driven, r)
		} else {
			out.Driving = append(out.Driving, r)
		}
	}
	for _, pr := range joined {
		switch {
		case !pr.IsCompleted:
			out.Joined = append(out.Joined, pr.Ride)
		case pr.Rated:
			out.Rated = append(out.Rated, pr.Ride)
		default:
			out.ToRate = append(out.ToRate, pr.Ride)
		}
	}
	return out, nil
}

// ListOpenRides backs the browse page. A failed read is an upstream error;
// the client decides whether to render an empty list.
func (s *RideService) ListOpenRides(ctx context.Context, filter models.RideFilter) ([]models.Ride, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Category != "" {
		c, ok := models.ParseCategory(string(filter.Category))
		if !ok {
			return nil, Validation("category_invalid", "unknown category")
		}
		filter.Category = c
	}

	rides, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]models.Ride, error) {
		return s.rides.ListOpen(ctx, filter)
	})
	if err != nil {
		return nil, Upstream("list open rides", err)
	}
	return rides, nil
}

func (s *RideService) GetRide(ctx context.Context, rideID uuid.UUID) (*RideDetail, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	detail := &RideDetail{Ride: ride}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.Passengers, err = retry.Do(gctx, s.retry, func(ctx context.Context) ([]models.PassengerLink, error) {
			return s.passengers.ListPassengers(ctx, rideID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		detail.Ratings, err = retry.Do(gctx, s.retry, func(ctx context.Context) ([]models.Rating, error) {
			return s.ratings.ListByRide(ctx, rideID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		detail.Summary, err = s.rideSummary(gctx, rideID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Upstream("get ride detail", err)
	}
	return detail, nil
}

func (s *RideService) ListRideRatings(ctx context.Context, rideID uuid.UUID) (*RideRatings, error) {
	if _, err := s.loadRide(ctx, rideID); err != nil {
		return nil, err
	}

	ratings, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]models.Rating, error) {
		return s.ratings.ListByRide(ctx, rideID)
	})
	if err != nil {
		return nil, Upstream("list ratings", err)
	}
	summary, err := s.rideSummary(ctx, rideID)
	if err != nil {
		return nil, Upstream("rating summary", err)
	}
	return &RideRatings{Summary: summary, Ratings: ratings}, nil
}

// RideRatingSummary is the per-ride average, rounded to one decimal.
func (s *RideService) RideRatingSummary(ctx context.Context, rideID uuid.UUID) (models.RatingSummary, error) {
	if _, err := s.loadRide(ctx, rideID); err != nil {
		return models.RatingSummary{}, err
	}
	summary, err := s.rideSummary(ctx, rideID)
	if err != nil {
		return models.RatingSummary{}, Upstream("rating summary", err)
	}
	return summary, nil
}

func (s *RideService) rideSummary(ctx context.Context, rideID uuid.UUID) (models.RatingSummary, error) {
	sum, err := retry.Do(ctx, s.retry, func(ctx context.Context) (models.RatingSummary, error) {
		return s.ratings.SummaryForRide(ctx, rideID)
	})
	if err != nil {
		return models.RatingSummary{}, err
	}
	return rounded(sum), nil
}

// loadRide returns ErrRideNotFound for a missing ride.
func (s *RideService) loadRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.Ride, error) {
		return s.rides.GetByID(ctx, rideID)
	})
	if err != nil {
		return nil, Upstream("get ride", err)
	}
	if ride == nil {
		return nil, ErrRideNotFound
	}
	return ride, nil
}

func rounded(s models.RatingSummary) models.RatingSummary {
	s.Average = math.Round(s.Average*10) / 10
	return s
}

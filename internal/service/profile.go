package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/retry"
	"golang.org/x/sync/errgroup"
)

// Profile is the public view of a user: how they rate as a driver, the
// completed rides they drove, and the reviews they wrote as a passenger.
type Profile struct {
	User         *models.User         `json:"user"`
	DriverRating models.RatingSummary `json:"driver_rating"`
	DrivenRides  []RideWithRating     `json:"driven_rides"`
	Reviews      []models.Rating      `json:"reviews_written"`
}

type RideWithRating struct {
	models.Ride
	Rating models.RatingSummary `json:"rating"`
}

func (s *RideService) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*models.User, error) {
		return s.users.GetByID(ctx, userID)
	})
	if err != nil {
		return nil, Upstream("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	p := &Profile{User: user}
	var driven []models.Ride

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := retry.Do(gctx, s.retry, func(ctx context.Context) (models.RatingSummary, error) {
			return s.ratings.SummaryForDriver(ctx, userID)
		})
		p.DriverRating = rounded(sum)
		return err
	})
	g.Go(func() error {
		var err error
		driven, err = retry.Do(gctx, s.retry, func(ctx context.Context) ([]models.Ride, error) {
			return s.rides.ListByDriver(ctx, userID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		p.Reviews, err = retry.Do(gctx, s.retry, func(ctx context.Context) ([]models.Rating, error) {
			return s.ratings.ListByRater(ctx, userID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Upstream("load profile", err)
	}

	p.DrivenRides = make([]RideWithRating, 0, len(driven))
	for _, r := range driven {
		if !r.IsCompleted {
			continue
		}
		sum, err := s.rideSummary(ctx, r.ID)
		if err != nil {
			return nil, Upstream("ride summary", err)
		}
		p.DrivenRides = append(p.DrivenRides, RideWithRating{Ride: r, Rating: sum})
	}
	return p, nil
}

package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type RideStore struct {
	db *DB
}

func NewRideStore(db *DB) *RideStore {
	return &RideStore{db: db}
}

func (s *RideStore) Create(_ context.Context, driverID uuid.UUID, in models.NewRide) (*models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[driverID]; !ok {
		return nil, repository.ErrNotFound
	}
	r := models.Ride{
		ID:                 uuid.New(),
		DriverID:           driverID,
		StartingLocation:   in.StartingLocation,
		Destination:        in.Destination,
		DestinationAddress: in.DestinationAddress,
		ScheduledAt:        in.ScheduledAt,
		Category:           in.Category,
		SeatsLeft:          in.Seats,
		Description:        in.Description,
		CreatedAt:          s.db.now(),
	}
	s.db.rides[r.ID] = r
	r = s.db.withDriver(r)
	return &r, nil
}

func (s *RideStore) GetByID(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r, ok := s.db.rides[rideID]
	if !ok {
		return nil, nil
	}
	r = s.db.withDriver(r)
	return &r, nil
}

func (s *RideStore) ListOpen(_ context.Context, filter models.RideFilter) ([]models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	q := strings.TrimSpace(filter.Query)
	rides := make([]models.Ride, 0)
	for _, r := range s.db.rides {
		if r.IsCompleted || r.SeatsLeft <= 0 {
			continue
		}
		if q != "" && !containsFold(r.Destination, q) && !containsFold(r.StartingLocation, q) {
			continue
		}
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		rides = append(rides, s.db.withDriver(r))
	}
	sortRides(rides)
	if filter.Limit > 0 && len(rides) > filter.Limit {
		rides = rides[:filter.Limit]
	}
	return rides, nil
}

func (s *RideStore) ListByDriver(_ context.Context, driverID uuid.UUID) ([]models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rides := make([]models.Ride, 0)
	for _, r := range s.db.rides {
		if r.DriverID == driverID {
			rides = append(rides, s.db.withDriver(r))
		}
	}
	sortRides(rides)
	return rides, nil
}

func (s *RideStore) MarkCompleted(_ context.Context, rideID, driverID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r, ok := s.db.rides[rideID]
	if !ok || r.DriverID != driverID || r.IsCompleted {
		return false, nil
	}
	r.IsCompleted = true
	s.db.rides[rideID] = r
	return true, nil
}

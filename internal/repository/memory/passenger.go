package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

type PassengerStore struct {
	db *DB
}

func NewPassengerStore(db *DB) *PassengerStore {
	return &PassengerStore{db: db}
}

// Join checks and mutates under the store lock, which plays the part of
// the row lock in the Postgres implementation.
func (s *PassengerStore) Join(_ context.Context, rideID, passengerID uuid.UUID) (*models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r, ok := s.db.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.IsCompleted {
		return nil, repository.ErrRideCompleted
	}
	if r.SeatsLeft <= 0 {
		return nil, repository.ErrNoSeats
	}
	key := passengerKey{rideID: rideID, passengerID: passengerID}
	if _, dup := s.db.passengers[key]; dup {
		return nil, repository.ErrDuplicate
	}
	if _, ok := s.db.users[passengerID]; !ok {
		return nil, repository.ErrNotFound
	}

	s.db.passengers[key] = models.PassengerLink{
		RideID:      rideID,
		PassengerID: passengerID,
		JoinedAt:    s.db.now(),
	}
	r.SeatsLeft--
	s.db.rides[rideID] = r

	r = s.db.withDriver(r)
	return &r, nil
}

func (s *PassengerStore) IsPassenger(_ context.Context, rideID, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	_, ok := s.db.passengers[passengerKey{rideID: rideID, passengerID: userID}]
	return ok, nil
}

func (s *PassengerStore) ListPassengers(_ context.Context, rideID uuid.UUID) ([]models.PassengerLink, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	links := make([]models.PassengerLink, 0)
	for key, l := range s.db.passengers {
		if key.rideID != rideID {
			continue
		}
		l.PassengerName = s.db.displayName(l.PassengerID)
		links = append(links, l)
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].JoinedAt.Before(links[j].JoinedAt)
	})
	return links, nil
}

func (s *PassengerStore) ListRidesForPassenger(_ context.Context, passengerID uuid.UUID) ([]models.PassengerRide, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rides := make([]models.Ride, 0)
	for key := range s.db.passengers {
		if key.passengerID == passengerID {
			rides = append(rides, s.db.withDriver(s.db.rides[key.rideID]))
		}
	}
	sortRides(rides)

	out := make([]models.PassengerRide, 0, len(rides))
	for _, r := range rides {
		_, rated := s.db.rated[passengerKey{rideID: r.ID, passengerID: passengerID}]
		out = append(out, models.PassengerRide{Ride: r, Rated: rated})
	}
	return out, nil
}

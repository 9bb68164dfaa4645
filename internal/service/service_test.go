package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	db    *memory.DB
	users *memory.UserStore
	rides *RideService
	chats *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := memory.New()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db.SetClock(steppingClock(start))

	users := memory.NewUserStore(db)
	rides := memory.NewRideStore(db)
	logger := zap.NewNop()

	return &fixture{
		db:    db,
		users: users,
		rides: NewRideService(rides, memory.NewPassengerStore(db), memory.NewRatingStore(db), users, logger),
		chats: NewChatService(memory.NewChatStore(db), memory.NewMessageStore(db), users, rides, logger),
	}
}

// steppingClock advances one second per call so ordering by time is
// deterministic. The memory store only calls it under its own lock.
func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func (f *fixture) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u, err := f.users.Create(context.Background(), name+"@campus.edu", name, "hash")
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) manyUsers(t *testing.T, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.user(t, fmt.Sprintf("rider%d", i))
	}
	return ids
}

func (f *fixture) ride(t *testing.T, driverID uuid.UUID, seats int) *models.Ride {
	t.Helper()
	r, err := f.rides.CreateRide(context.Background(), driverID, models.NewRide{
		StartingLocation: "North Campus",
		Destination:      "Airport",
		ScheduledAt:      time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC),
		Category:         models.CategoryAirport,
		Seats:            seats,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) completedRideWithPassenger(t *testing.T) (ride *models.Ride, driver, passenger uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	driver = f.user(t, "driver")
	passenger = f.user(t, "passenger")
	ride = f.ride(t, driver, 2)

	_, err := f.rides.JoinRide(ctx, ride.ID, passenger)
	require.NoError(t, err)
	_, err = f.rides.CompleteRide(ctx, ride.ID, driver)
	require.NoError(t, err)
	return ride, driver, passenger
}

// Package memory is an in-process implementation of the repository
// interfaces. It enforces the same uniqueness constraints and conditional
// updates as the Postgres schema, so it backs both the test suite and the
// STORE_DRIVER=memory development mode.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/repository"
)

var (
	_ repository.UserRepository      = (*UserStore)(nil)
	_ repository.RideRepository      = (*RideStore)(nil)
	_ repository.PassengerRepository = (*PassengerStore)(nil)
	_ repository.RatingRepository    = (*RatingStore)(nil)
	_ repository.ChatRepository      = (*ChatStore)(nil)
	_ repository.MessageRepository   = (*MessageStore)(nil)
)

type passengerKey struct {
	rideID      uuid.UUID
	passengerID uuid.UUID
}

type pairKey struct {
	a, b uuid.UUID
}

// DB holds every table behind one mutex. Each store below is a typed view
// over it, mirroring postgres.NewXStore(pool).
type DB struct {
	mu sync.Mutex

	now func() time.Time

	users      map[uuid.UUID]models.User
	emails     map[string]uuid.UUID
	rides      map[uuid.UUID]models.Ride
	passengers map[passengerKey]models.PassengerLink
	ratings    []models.Rating
	rated      map[passengerKey]struct{}
	chats      map[uuid.UUID]models.ChatRoom
	pairs      map[pairKey]uuid.UUID
	messages   []models.Message
	nextMsgID  int64
}

func New() *DB {
	return &DB{
		now:        time.Now,
		users:      make(map[uuid.UUID]models.User),
		emails:     make(map[string]uuid.UUID),
		rides:      make(map[uuid.UUID]models.Ride),
		passengers: make(map[passengerKey]models.PassengerLink),
		rated:      make(map[passengerKey]struct{}),
		chats:      make(map[uuid.UUID]models.ChatRoom),
		pairs:      make(map[pairKey]uuid.UUID),
	}
}

// SetClock replaces the timestamp source. Tests use it to force equal
// created_at values.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// withDriver fills the denormalised driver name. Caller holds db.mu.
func (db *DB) withDriver(r models.Ride) models.Ride {
	r.DriverName = db.users[r.DriverID].DisplayName
	return r
}

func (db *DB) displayName(id uuid.UUID) string {
	return db.users[id].DisplayName
}

func sortRides(rides []models.Ride) {
	sort.SliceStable(rides, func(i, j int) bool {
		if !rides[i].ScheduledAt.Equal(rides[j].ScheduledAt) {
			return rides[i].ScheduledAt.Before(rides[j].ScheduledAt)
		}
		return rides[i].ID.String() < rides[j].ID.String()
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

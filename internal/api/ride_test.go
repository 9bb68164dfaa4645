package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRideLifecycle(t *testing.T) {
	s := newTestServer(t)
	driver, p1, p2 := s.signup(t, "driver"), s.signup(t, "pat"), s.signup(t, "quinn")
	rideID := s.postRide(t, driver, 1)
	ridePath := "/v1/rides/" + rideID.String()

	w := s.do(t, http.MethodGet, "/v1/rides?q=sfo&category=airport", p1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]models.Ride](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, "driver", listed[0].DriverName)

	w = s.do(t, http.MethodPost, ridePath+"/join", p1.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	joined := decode[service.JoinResult](t, w)
	assert.Equal(t, 0, joined.Ride.SeatsLeft)
	assert.True(t, joined.RideFull)

	w = s.do(t, http.MethodPost, ridePath+"/join", p2.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_seats_available", errCode(t, w))

	w = s.do(t, http.MethodGet, "/v1/rides", p2.Token, nil)
	assert.Empty(t, decode[[]models.Ride](t, w), "full rides are not listed")

	w = s.do(t, http.MethodPost, ridePath+"/ratings", p1.Token, map[string]any{"score": 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ride_not_completed", errCode(t, w))

	w = s.do(t, http.MethodPost, ridePath+"/complete", p1.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_ride_driver", errCode(t, w))

	w = s.do(t, http.MethodPost, ridePath+"/complete", driver.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.Ride](t, w).IsCompleted)

	w = s.do(t, http.MethodPost, ridePath+"/complete", driver.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ride_already_completed", errCode(t, w))

	w = s.do(t, http.MethodPost, ridePath+"/ratings", p1.Token, map[string]any{"score": 4, "comment": "smooth"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, ridePath+"/ratings", p1.Token, map[string]any{"score": 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_rating", errCode(t, w))

	w = s.do(t, http.MethodPost, ridePath+"/ratings", driver.Token, map[string]any{"score": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, ridePath+"/ratings", p2.Token, map[string]any{"score": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_a_passenger", errCode(t, w))

	w = s.do(t, http.MethodGet, ridePath+"/ratings", p2.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ratings := decode[service.RideRatings](t, w)
	assert.Equal(t, 1, ratings.Summary.Count)
	assert.InDelta(t, 4.0, ratings.Summary.Average, 0.001)
	require.Len(t, ratings.Ratings, 1)
	assert.Equal(t, "pat", ratings.Ratings[0].RaterName)

	w = s.do(t, http.MethodGet, ridePath, p2.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[service.RideDetail](t, w)
	assert.Len(t, detail.Passengers, 1)
	assert.True(t, detail.Ride.IsCompleted)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RideJoins.WithLabelValues("joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RideJoins.WithLabelValues("no_seats_available")))
}

func TestCreateRide_Validation(t *testing.T) {
	s := newTestServer(t)
	driver := s.signup(t, "driver")

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"no destination", map[string]any{"scheduled_at": "2030-01-01T10:00:00Z", "seats": 2}, "invalid_body"},
		{"blank destination", map[string]any{"destination": "  ", "scheduled_at": "2030-01-01T10:00:00Z", "seats": 2}, "destination_required"},
		{"no time", map[string]any{"destination": "SFO", "seats": 2}, "invalid_body"},
		{"no seats", map[string]any{"destination": "SFO", "scheduled_at": "2030-01-01T10:00:00Z"}, "invalid_body"},
		{"seats not a number", map[string]any{"destination": "SFO", "scheduled_at": "2030-01-01T10:00:00Z", "seats": "two"}, "invalid_body"},
		{"zero seats", map[string]any{"destination": "SFO", "scheduled_at": "2030-01-01T10:00:00Z", "seats": 0}, "seats_invalid"},
		{"bad category", map[string]any{"destination": "SFO", "scheduled_at": "2030-01-01T10:00:00Z", "seats": 2, "category": "Spaceport"}, "category_invalid"},
		{"bad time format", map[string]any{"destination": "SFO", "scheduled_at": "tomorrow", "seats": 2}, "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/rides", driver.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

func TestRateRide_Validation(t *testing.T) {
	s := newTestServer(t)
	driver, pat := s.signup(t, "driver"), s.signup(t, "pat")
	path := "/v1/rides/" + s.postRide(t, driver, 2).String() + "/ratings"

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"missing score", map[string]any{"comment": "nice"}, "invalid_body"},
		{"score not a number", map[string]any{"score": "x"}, "invalid_body"},
		{"zero score", map[string]any{"score": 0}, "score_out_of_range"},
		{"score too high", map[string]any{"score": 6}, "score_out_of_range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, path, pat.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

func TestRideRoutes_NotFoundAndBadIDs(t *testing.T) {
	s := newTestServer(t)
	user := s.signup(t, "sam")
	missing := "/v1/rides/" + uuid.NewString()

	w := s.do(t, http.MethodGet, missing, user.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ride_not_found", errCode(t, w))

	w = s.do(t, http.MethodPost, missing+"/join", user.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/rides/not-a-uuid", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_id", errCode(t, w))

	w = s.do(t, http.MethodGet, "/v1/rides?limit=-1", user.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinRide_DriverAndDuplicate(t *testing.T) {
	s := newTestServer(t)
	driver, pat := s.signup(t, "driver"), s.signup(t, "pat")
	path := "/v1/rides/" + s.postRide(t, driver, 3).String() + "/join"

	w := s.do(t, http.MethodPost, path, driver.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "driver_cannot_join_own_ride", errCode(t, w))

	w = s.do(t, http.MethodPost, path, pat.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[service.JoinResult](t, w).Ride.SeatsLeft)

	w = s.do(t, http.MethodPost, path, pat.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_joined", errCode(t, w))
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/observ"
	"github.com/lalith-99/campusride/internal/service"
	"go.uber.org/zap"
)

// RideHandler exposes the ride lifecycle: posting, browsing, joining,
// completing and rating.
type RideHandler struct {
	rides   *service.RideService
	metrics *observ.Metrics
	logger  *zap.Logger
}

func NewRideHandler(rides *service.RideService, metrics *observ.Metrics, logger *zap.Logger) *RideHandler {
	return &RideHandler{rides: rides, metrics: metrics, logger: logger}
}

// Binding only checks presence and JSON types. Pointers let an explicit
// zero through to the service's range checks.
type createRideRequest struct {
	StartingLocation   string    `json:"starting_location"`
	Destination        string    `json:"destination" binding:"required"`
	DestinationAddress string    `json:"destination_address"`
	ScheduledAt        time.Time `json:"scheduled_at" binding:"required"`
	Category           string    `json:"category"`
	Seats              *int      `json:"seats" binding:"required"`
	Description        string    `json:"description"`
}

type rateRequest struct {
	Score   *int   `json:"score" binding:"required"`
	Comment string `json:"comment"`
}

// List handles GET /v1/rides?q=&category=&limit=
func (h *RideHandler) List(c *gin.Context) {
	filter := models.RideFilter{
		Query:    c.Query("q"),
		Category: models.Category(c.Query("category")),
	}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			badRequest(c, "invalid_limit", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	rides, err := h.rides.ListOpenRides(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rides)
}

// Create handles POST /v1/rides. The caller becomes the driver.
func (h *RideHandler) Create(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	ride, err := h.rides.CreateRide(c.Request.Context(), middleware.GetUserID(c), models.NewRide{
		StartingLocation:   req.StartingLocation,
		Destination:        req.Destination,
		DestinationAddress: req.DestinationAddress,
		ScheduledAt:        req.ScheduledAt,
		Category:           models.Category(req.Category),
		Seats:              *req.Seats,
		Description:        req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ride)
}

// Get handles GET /v1/rides/:id
func (h *RideHandler) Get(c *gin.Context) {
	rideID, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.rides.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Join handles POST /v1/rides/:id/join
func (h *RideHandler) Join(c *gin.Context) {
	rideID, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.rides.JoinRide(c.Request.Context(), rideID, middleware.GetUserID(c))
	h.metrics.RideJoins.WithLabelValues(joinOutcome(err)).Inc()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func joinOutcome(err error) string {
	var se *service.Error
	switch {
	case err == nil:
		return "joined"
	case errors.As(err, &se):
		return se.Code
	default:
		return "error"
	}
}

// Complete handles POST /v1/rides/:id/complete
func (h *RideHandler) Complete(c *gin.Context) {
	rideID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ride, err := h.rides.CompleteRide(c.Request.Context(), rideID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ride)
}

// Ratings handles GET /v1/rides/:id/ratings
func (h *RideHandler) Ratings(c *gin.Context) {
	rideID, ok := paramID(c, "id")
	if !ok {
		return
	}
	out, err := h.rides.ListRideRatings(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Rate handles POST /v1/rides/:id/ratings
func (h *RideHandler) Rate(c *gin.Context) {
	rideID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	rating, err := h.rides.SubmitRating(c.Request.Context(), rideID, middleware.GetUserID(c), *req.Score, req.Comment)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

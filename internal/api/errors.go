package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/service"
	"go.uber.org/zap"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUpstream:
		return http.StatusServiceUnavailable
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Classified client errors go out as-is;
// anything 5xx is logged with the request logger and its detail hidden.
func respondError(c *gin.Context, fallback *zap.Logger, err error) {
	status := statusFor(service.KindOf(err))

	var se *service.Error
	if errors.As(err, &se) && status < http.StatusInternalServerError {
		c.JSON(status, errorBody{Error: se.Message, Code: se.Code})
		return
	}

	_ = c.Error(err)
	middleware.LoggerFrom(c, fallback).Error("request failed", zap.Error(err))

	body := errorBody{Error: "internal error", Code: "internal"}
	if se != nil {
		body = errorBody{Error: se.Message, Code: se.Code}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: code})
}

// paramID parses a uuid path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid_id", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/service"
	"github.com/lalith-99/campusride/internal/storage"
	"go.uber.org/zap"
)

// UserHandler serves the caller's own account and other users' public
// profiles.
type UserHandler struct {
	accounts       *service.AccountService
	rides          *service.RideService
	maxAvatarBytes int64
	logger         *zap.Logger
}

func NewUserHandler(
	accounts *service.AccountService,
	rides *service.RideService,
	maxAvatarBytes int64,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		accounts:       accounts,
		rides:          rides,
		maxAvatarBytes: maxAvatarBytes,
		logger:         logger,
	}
}

// updateMeRequest mirrors the settings form. Email and password changes
// need current_password.
type updateMeRequest struct {
	DisplayName     *string `json:"display_name"`
	Email           *string `json:"email" binding:"omitempty,email"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password" binding:"omitempty,min=8,max=72"`
	ConfirmPassword string  `json:"confirm_password"`
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.accounts.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe handles PATCH /v1/users/me. Omitted fields are left alone.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	user, err := h.accounts.UpdateSettings(c.Request.Context(), middleware.GetUserID(c), service.SettingsUpdate{
		DisplayName:     req.DisplayName,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UploadAvatar handles POST /v1/users/me/avatar with a multipart "avatar"
// file. The stored image's URL becomes the user's avatar.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	// Multipart framing needs a little headroom over the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarBytes+64<<10)

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "avatar is too large", Code: "avatar_too_large"})
			return
		}
		badRequest(c, "avatar_required", "multipart field \"avatar\" is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "avatar is too large", Code: "avatar_too_large"})
		return
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		badRequest(c, "avatar_unreadable", "could not read avatar")
		return
	}
	head = head[:n]

	contentType, ext, err := storage.DetectImage(head)
	if err != nil {
		badRequest(c, "avatar_type_unsupported", "avatar must be a JPEG, PNG, GIF or WebP image")
		return
	}

	body := io.MultiReader(bytes.NewReader(head), file)
	user, err := h.accounts.SetAvatar(c.Request.Context(), middleware.GetUserID(c), contentType, ext, body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// MyRides handles GET /v1/users/me/rides
func (h *UserHandler) MyRides(c *gin.Context) {
	rides, err := h.rides.ListRidesForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rides)
}

// Profile handles GET /v1/users/:id/profile
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.rides.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/auth"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/service"
	"go.uber.org/zap"
)

// AuthHandler serves signup and login, the only public endpoints besides
// health and metrics.
type AuthHandler struct {
	accounts  *service.AccountService
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(accounts *service.AccountService, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// authResponse carries the session token the client sends as
// "Authorization: Bearer <token>" from then on.
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	user, err := h.accounts.Signup(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, user)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := auth.GenerateToken(user.ID, user.Email, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(status, authResponse{Token: token, User: user})
}

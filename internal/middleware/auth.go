package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/auth"
)

// Context keys for the authenticated caller. Handlers read them through the
// helpers below rather than calling c.Get directly.
const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "email"
)

// AuthMiddleware validates the session token and stores the caller's
// identity in the gin context. Anything else aborts with 401.
//
// The token normally arrives as "Authorization: Bearer <token>". Browsers
// cannot set headers on a websocket handshake, so a "token" query
// parameter is accepted as well.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": msg,
				"code":  "unauthorized",
			})
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
				"code":  "unauthorized",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("token"); q != "" {
			return q, ""
		}
		return "", "missing authorization header"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid authorization format, expected: Bearer <token>"
	}
	return strings.TrimSpace(parts[1]), ""
}

// GetUserID returns the authenticated user, or uuid.Nil outside an
// authenticated route.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	email, _ := c.Get(ContextKeyEmail)
	s, _ := email.(string)
	return s
}

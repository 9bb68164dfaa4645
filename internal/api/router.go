package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/observ"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth     *AuthHandler
	Rides    *RideHandler
	Users    *UserHandler
	Chats    *ChatHandler
	Messages *MessageHandler
	WS       *WSHandler
}

type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	CORSOrigins    []string
	// UploadDir is served at /uploads when avatars are stored locally.
	UploadDir string
	// Health reports whether the store is reachable; nil means always ok.
	Health func(context.Context) error
}

func NewRouter(cfg RouterConfig, h Handlers, metrics *observ.Metrics, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		cors.New(corsConfig(cfg.CORSOrigins)),
		middleware.Tracing(observ.ServiceName),
		middleware.Logging(logger),
		middleware.Metrics(metrics),
	)

	r.GET("/health", health(cfg.Health))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	v1 := r.Group("/v1")

	public := v1.Group("/auth", middleware.Timeout(cfg.RequestTimeout))
	public.POST("/signup", h.Auth.Signup)
	public.POST("/login", h.Auth.Login)

	authed := v1.Group("", middleware.AuthMiddleware(cfg.JWTSecret))

	// The socket outlives any request deadline.
	authed.GET("/ws", h.WS.Serve)

	api := authed.Group("", middleware.Timeout(cfg.RequestTimeout))

	api.GET("/rides", h.Rides.List)
	api.POST("/rides", h.Rides.Create)
	api.GET("/rides/:id", h.Rides.Get)
	api.POST("/rides/:id/join", h.Rides.Join)
	api.POST("/rides/:id/complete", h.Rides.Complete)
	api.GET("/rides/:id/ratings", h.Rides.Ratings)
	api.POST("/rides/:id/ratings", h.Rides.Rate)

	api.GET("/users/me", h.Users.GetMe)
	api.PATCH("/users/me", h.Users.UpdateMe)
	api.POST("/users/me/avatar", h.Users.UploadAvatar)
	api.GET("/users/me/rides", h.Users.MyRides)
	api.GET("/users/:id/profile", h.Users.Profile)

	api.GET("/chats", h.Chats.List)
	api.POST("/chats", h.Chats.Open)
	api.GET("/chats/:id/messages", h.Messages.List)
	api.POST("/chats/:id/messages", h.Messages.Create)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	return cfg
}

func health(check func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lalith-99/campusride/internal/api"
	"github.com/lalith-99/campusride/internal/config"
	"github.com/lalith-99/campusride/internal/db"
	"github.com/lalith-99/campusride/internal/observ"
	"github.com/lalith-99/campusride/internal/relay"
	"github.com/lalith-99/campusride/internal/repository"
	"github.com/lalith-99/campusride/internal/repository/memory"
	"github.com/lalith-99/campusride/internal/repository/postgres"
	"github.com/lalith-99/campusride/internal/retry"
	"github.com/lalith-99/campusride/internal/service"
	"github.com/lalith-99/campusride/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// stores is one implementation of every repository interface.
type stores struct {
	users      repository.UserRepository
	rides      repository.RideRepository
	passengers repository.PassengerRepository
	ratings    repository.RatingRepository
	chats      repository.ChatRepository
	messages   repository.MessageRepository
	health     func(context.Context) error
	close      func()
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observ.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.TraceSampleRate, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	metrics := observ.NewMetrics()
	rideSvc := service.NewRideService(st.rides, st.passengers, st.ratings, st.users, logger)
	chatSvc := service.NewChatService(st.chats, st.messages, st.users, st.rides, logger)

	g, gctx := errgroup.WithContext(ctx)

	hub := relay.NewHub(metrics)
	var broker relay.Broker = relay.NewLocalBroker(hub)
	if cfg.Broker == "redis" {
		rdb, err := connectRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()

		rb := relay.NewRedisBroker(rdb, hub, logger)
		broker = rb
		g.Go(func() error { return rb.Run(gctx, nil) })
	}

	rlOpts := relay.DefaultOptions()
	rlOpts.AllowedOrigins = cfg.CORSOrigins
	rl := relay.New(chatSvc, hub, broker, metrics, logger, rlOpts)

	avatars, uploadDir, err := openAvatarStore(cfg, logger)
	if err != nil {
		return err
	}
	accounts := service.NewAccountService(st.users, avatars, logger)

	router := api.NewRouter(api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		UploadDir:      uploadDir,
		Health:         st.health,
	}, api.Handlers{
		Auth:     api.NewAuthHandler(accounts, cfg.JWTSecret, cfg.TokenTTL, logger),
		Rides:    api.NewRideHandler(rideSvc, metrics, logger),
		Users:    api.NewUserHandler(accounts, rideSvc, cfg.MaxAvatarBytes, logger),
		Chats:    api.NewChatHandler(chatSvc, logger),
		Messages: api.NewMessageHandler(chatSvc, rl, logger),
		WS:       api.NewWSHandler(rl, logger),
	}, metrics, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting campusride",
			zap.Int("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("broker", cfg.Broker),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		rl.Shutdown()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		m := memory.New()
		return &stores{
			users:      memory.NewUserStore(m),
			rides:      memory.NewRideStore(m),
			passengers: memory.NewPassengerStore(m),
			ratings:    memory.NewRatingStore(m),
			chats:      memory.NewChatStore(m),
			messages:   memory.NewMessageStore(m),
			close:      func() {},
		}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.Migrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	pool := database.Pool()
	return &stores{
		users:      postgres.NewUserStore(pool),
		rides:      postgres.NewRideStore(pool),
		passengers: postgres.NewPassengerStore(pool),
		ratings:    postgres.NewRatingStore(pool),
		chats:      postgres.NewChatStore(pool),
		messages:   postgres.NewMessageStore(pool),
		health:     database.Health,
		close:      database.Close,
	}, nil
}

// connectRedis waits briefly for Redis; in compose setups it often starts
// after the API.
func connectRedis(ctx context.Context, url string, logger *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	p := retry.Policy{MaxTries: 5, InitialInterval: 200 * time.Millisecond, MaxInterval: 2 * time.Second}
	p.OnRetry = func(err error, wait time.Duration) {
		logger.Warn("redis not ready", zap.Error(err), zap.Duration("wait", wait))
	}
	if _, err := retry.Do(ctx, p, func(ctx context.Context) (string, error) {
		return rdb.Ping(ctx).Result()
	}); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("connected to redis", zap.String("addr", opt.Addr))
	return rdb, nil
}

func openAvatarStore(cfg *config.Config, logger *zap.Logger) (storage.Store, string, error) {
	if cfg.UseS3() {
		s3, err := storage.NewS3Store(cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretKey, cfg.S3Bucket)
		if err != nil {
			return nil, "", err
		}
		logger.Info("avatars stored in s3", zap.String("bucket", cfg.S3Bucket))
		return s3, "", nil
	}

	local, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	logger.Warn("S3 not configured; storing avatars on local disk", zap.String("dir", cfg.UploadDir))
	return local, local.Dir, nil
}

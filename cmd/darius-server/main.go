// Package main is the entry point for the Darius Projects API server.
// Darius Projects is a project management backend with role-based access
// control and a strict one-user-one-project assignment model.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/auth"
	"github.com/prn-tf/darius-projects/internal/cache/memory"
	"github.com/prn-tf/darius-projects/internal/config"
	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/handler"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/media"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/permission"
	"github.com/prn-tf/darius-projects/internal/pkg/crypto"
	"github.com/prn-tf/darius-projects/internal/repository"
	"github.com/prn-tf/darius-projects/internal/repository/postgres"
	redisrepo "github.com/prn-tf/darius-projects/internal/repository/redis"
	"github.com/prn-tf/darius-projects/internal/repository/sqlite"
	"github.com/prn-tf/darius-projects/internal/service"
	"github.com/prn-tf/darius-projects/internal/token"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting darius-server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	var (
		userRepo    repository.UserRepository
		projectRepo repository.ProjectRepository
		txManager   repository.TxManager
		closeDB     func()
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("running sqlite migrations: %w", err)
		}
		userRepo = sqlite.NewUserRepository(db)
		projectRepo = sqlite.NewProjectRepository(db)
		txManager = sqlite.NewTxManager(db)
		closeDB = func() { db.Close() }

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening postgres database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("running postgres migrations: %w", err)
		}
		userRepo = postgres.NewUserRepository(db)
		projectRepo = postgres.NewProjectRepository(db)
		txManager = postgres.NewTxManager(db)
		closeDB = db.Close

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	defer closeDB()

	// Cache and distributed lock. Redis when available, in-process
	// fallbacks for single-node deployments.
	var (
		cacheStore repository.Cache
		locker     lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(ctx, redisrepo.Config{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		cacheStore = redisrepo.NewCache(client)
		locker = lock.NewRedisLocker(redisrepo.NewLock(client))
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		cacheStore = memCache
		memLocker := lock.NewMemoryLocker()
		defer memLocker.Stop()
		locker = memLocker
	}

	m := metrics.New()

	// Notifications
	var notifier notify.Notifier = notify.NewNoopNotifier()
	if cfg.Notify.Enabled {
		queueNotifier := notify.NewQueueNotifier(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Notify.QueueName, cfg.Notify.MaxRetries, m, logger)
		defer queueNotifier.Close()
		notifier = queueNotifier
	}

	// Media storage
	var mediaStorage media.Storage = media.NewNoopStorage()
	if cfg.Media.Enabled {
		s3Storage, err := media.NewS3Storage(ctx, media.S3Config{
			Endpoint:        cfg.Media.Endpoint,
			Region:          cfg.Media.Region,
			Bucket:          cfg.Media.Bucket,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
			UsePathStyle:    cfg.Media.UsePathStyle,
			PublicBaseURL:   cfg.Media.PublicBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("initializing media storage: %w", err)
		}
		mediaStorage = s3Storage
	}

	// Services
	tokens := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	hasher := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	engine := permission.NewEngine()

	authService := service.NewAuthService(
		userRepo, tokens, hasher, notifier, cacheStore, m,
		domain.Role(cfg.Auth.DefaultRole), logger,
	)
	userService := service.NewUserService(
		userRepo, projectRepo, txManager, locker, hasher, mediaStorage, logger,
	)
	projectService := service.NewProjectService(
		projectRepo, userRepo, txManager, locker, notifier, cacheStore, m, logger,
	)

	// HTTP layer
	guard := auth.NewGuard(authService, engine, m, logger)
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:       handler.NewAuthHandler(authService, engine, logger),
		UserHandler:       handler.NewUserHandler(userService, projectService, cfg.Media.MaxUploadSize, logger),
		ProjectHandler:    handler.NewProjectHandler(projectService, guard, logger),
		PermissionHandler: handler.NewPermissionHandler(engine, logger),
		Guard:             guard,
		Metrics:           m,
		Logger:            logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

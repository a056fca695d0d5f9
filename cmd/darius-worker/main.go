// Package main is the entry point for the Darius Projects background worker.
// The worker consumes the notification queue, delivers email, and runs the
// periodic overdue-project sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/config"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/metrics"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/repository"
	"github.com/prn-tf/darius-projects/internal/repository/postgres"
	redisrepo "github.com/prn-tf/darius-projects/internal/repository/redis"
	"github.com/prn-tf/darius-projects/internal/repository/sqlite"
	"github.com/prn-tf/darius-projects/internal/service"
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
		Msg("starting darius-worker")

	if !cfg.Redis.Enabled {
		logger.Fatal().Msg("the worker requires redis; set redis.enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Database. The overdue sweep reads and writes project state, so the
	// worker wires the same repository stack as the server.
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
		userRepo = postgres.NewUserRepository(db)
		projectRepo = postgres.NewProjectRepository(db)
		txManager = postgres.NewTxManager(db)
		closeDB = db.Close

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	defer closeDB()

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

	locker := lock.NewRedisLocker(redisrepo.NewLock(client))
	cacheStore := redisrepo.NewCache(client)

	m := metrics.New()

	// The sweep enqueues overdue notifications back onto the same queue.
	queueNotifier := notify.NewQueueNotifier(redisOpt, cfg.Notify.QueueName, cfg.Notify.MaxRetries, m, logger)
	defer queueNotifier.Close()

	projectService := service.NewProjectService(
		projectRepo, userRepo, txManager, locker, queueNotifier, cacheStore, m, logger,
	)

	emailer := notify.NewSMTPEmailer(
		cfg.Notify.SMTPHost, cfg.Notify.SMTPPort,
		cfg.Notify.SMTPUser, cfg.Notify.SMTPPassword,
		cfg.Notify.From, logger,
	)
	emailWorker := notify.NewEmailWorker(emailer, m, logger)

	mux := emailWorker.Mux()
	mux.HandleFunc(notify.TypeOverdueScan, func(ctx context.Context, t *asynq.Task) error {
		count, err := projectService.ScanOverdue(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("overdue", count).Msg("overdue sweep finished")
		return nil
	})

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Notify.Concurrency,
		Queues:      map[string]int{cfg.Notify.QueueName: 1},
		Logger:      asynqLogger{logger},
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: asynqLogger{logger},
	})
	if _, err := scheduler.Register(
		"@every 1h",
		asynq.NewTask(notify.TypeOverdueScan, nil),
		asynq.Queue(cfg.Notify.QueueName),
	); err != nil {
		return fmt.Errorf("registering overdue sweep: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Run(mux); err != nil {
			errCh <- fmt.Errorf("task server: %w", err)
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
	return nil
}

// asynqLogger adapts zerolog to the asynq logging interface.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }

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

// Package main is the entry point for the Darius Projects migration tool.
// It applies schema migrations for the configured database backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/config"
	"github.com/prn-tf/darius-projects/internal/repository/postgres"
	"github.com/prn-tf/darius-projects/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	flags := flag.NewFlagSet("darius-migrate", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	_ = flags.Parse(os.Args[2:])

	switch command {
	case "version":
		fmt.Printf("Darius Projects Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := runUp(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")

	case "status":
		if err := runStatus(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runUp(configPath string) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: 2,
			MinConns: 1,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func runStatus(configPath string) error {
	cfg := config.MustLoad(configPath)
	logger := zerolog.Nop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const query = `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`
	var version int

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
			return fmt.Errorf("no migrations applied yet: %w", err)
		}

	case "postgres":
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: 2,
			MinConns: 1,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Pool.QueryRow(ctx, query).Scan(&version); err != nil {
			return fmt.Errorf("no migrations applied yet: %w", err)
		}

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	fmt.Printf("driver:  %s\n", cfg.Database.Driver)
	fmt.Printf("version: %d\n", version)
	return nil
}

func printUsage() {
	fmt.Println(`Darius Projects Migration Tool

Usage:
  darius-migrate <command> [arguments]

Commands:
  up          Apply all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message

Flags:
  -config     Path to the YAML config file (env vars work too, prefix DARIUS_)

Examples:
  darius-migrate up -config ./configs/config.yaml
  DARIUS_DATABASE_DRIVER=sqlite darius-migrate up
  darius-migrate status`)
}

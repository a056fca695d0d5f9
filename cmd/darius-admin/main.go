// Package main is the entry point for the Darius Projects admin CLI.
// It provides administrative commands for seeding users and inspecting
// projects without going through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/cache/memory"
	"github.com/prn-tf/darius-projects/internal/config"
	"github.com/prn-tf/darius-projects/internal/domain"
	"github.com/prn-tf/darius-projects/internal/lock"
	"github.com/prn-tf/darius-projects/internal/media"
	"github.com/prn-tf/darius-projects/internal/notify"
	"github.com/prn-tf/darius-projects/internal/pkg/crypto"
	"github.com/prn-tf/darius-projects/internal/repository"
	"github.com/prn-tf/darius-projects/internal/repository/postgres"
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Darius Projects Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if err := runUserCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "project":
		if err := runProjectCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
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

// env assembles the service stack for one-shot CLI commands. It uses
// in-process lock and cache implementations; admin commands run against the
// database directly and do not coordinate with a running server.
type env struct {
	users    *service.UserService
	projects *service.ProjectService
	close    func()
}

func buildEnv(ctx context.Context, configPath string) (*env, error) {
	cfg := config.MustLoad(configPath)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	var (
		userRepo    repository.UserRepository
		projectRepo repository.ProjectRepository
		txManager   repository.TxManager
		closeDB     func()
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		userRepo = sqlite.NewUserRepository(db)
		projectRepo = sqlite.NewProjectRepository(db)
		txManager = sqlite.NewTxManager(db)
		closeDB = func() { db.Close() }

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
			return nil, err
		}
		userRepo = postgres.NewUserRepository(db)
		projectRepo = postgres.NewProjectRepository(db)
		txManager = postgres.NewTxManager(db)
		closeDB = db.Close

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	memCache := memory.NewCache()
	hasher := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	locker := lock.NewNoOpLocker()
	notifier := notify.NewNoopNotifier()

	return &env{
		users: service.NewUserService(
			userRepo, projectRepo, txManager, locker, hasher, media.NewNoopStorage(), logger,
		),
		projects: service.NewProjectService(
			projectRepo, userRepo, txManager, locker, notifier, memCache, nil, logger,
		),
		close: func() {
			memCache.Stop()
			closeDB()
		},
	}, nil
}

func runUserCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: darius-admin user <create|list> [flags]")
	}

	switch args[0] {
	case "create":
		flags := flag.NewFlagSet("user create", flag.ExitOnError)
		configPath := flags.String("config", "", "path to config file")
		name := flags.String("name", "", "user name")
		email := flags.String("email", "", "user email")
		password := flags.String("password", "", "user password")
		role := flags.String("role", "USER", "user role (ADMIN or USER)")
		_ = flags.Parse(args[1:])

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		e, err := buildEnv(ctx, *configPath)
		if err != nil {
			return err
		}
		defer e.close()

		user, err := e.users.Create(ctx, service.CreateUserInput{
			Name:     *name,
			Email:    *email,
			Password: *password,
			Role:     domain.Role(*role),
		})
		if err != nil {
			return err
		}

		fmt.Printf("created user %s (%s) role=%s\n", user.ID, user.Email, user.Role)
		return nil

	case "list":
		flags := flag.NewFlagSet("user list", flag.ExitOnError)
		configPath := flags.String("config", "", "path to config file")
		limit := flags.Int("limit", 100, "maximum users to list")
		_ = flags.Parse(args[1:])

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		e, err := buildEnv(ctx, *configPath)
		if err != nil {
			return err
		}
		defer e.close()

		result, err := e.users.List(ctx, service.ListUsersInput{Limit: *limit})
		if err != nil {
			return err
		}

		for _, u := range result.Items {
			assigned := "-"
			if u.AssignedProjectID != nil {
				assigned = *u.AssignedProjectID
			}
			fmt.Printf("%s\t%s\t%s\tactive=%t\tproject=%s\n", u.ID, u.Email, u.Role, u.IsActive, assigned)
		}
		fmt.Printf("total: %d\n", result.Total)
		return nil

	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func runProjectCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: darius-admin project <create|list> [flags]")
	}

	switch args[0] {
	case "create":
		flags := flag.NewFlagSet("project create", flag.ExitOnError)
		configPath := flags.String("config", "", "path to config file")
		name := flags.String("name", "", "project name")
		endDate := flags.String("end-date", "", "end date (RFC 3339, e.g. 2026-12-31T00:00:00Z)")
		_ = flags.Parse(args[1:])

		deadline, err := time.Parse(time.RFC3339, *endDate)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		e, err := buildEnv(ctx, *configPath)
		if err != nil {
			return err
		}
		defer e.close()

		project, err := e.projects.Create(ctx, service.CreateProjectInput{
			Name:    *name,
			EndDate: deadline,
		})
		if err != nil {
			return err
		}

		fmt.Printf("created project %s (%s) due %s\n", project.ID, project.Name, project.EndDate.Format(time.RFC3339))
		return nil

	case "list":
		flags := flag.NewFlagSet("project list", flag.ExitOnError)
		configPath := flags.String("config", "", "path to config file")
		limit := flags.Int("limit", 100, "maximum projects to list")
		_ = flags.Parse(args[1:])

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		e, err := buildEnv(ctx, *configPath)
		if err != nil {
			return err
		}
		defer e.close()

		result, err := e.projects.List(ctx, service.ListProjectsInput{Limit: *limit})
		if err != nil {
			return err
		}

		for _, p := range result.Items {
			assignee := "-"
			if p.AssignedUserID != nil {
				assignee = *p.AssignedUserID
			}
			fmt.Printf("%s\t%s\t%s\tdue=%s\tuser=%s\n",
				p.ID, p.Name, p.Status, p.EndDate.Format("2006-01-02"), assignee)
		}
		fmt.Printf("total: %d\n", result.Total)
		return nil

	default:
		return fmt.Errorf("unknown project subcommand: %s", args[0])
	}
}

func runStats(args []string) error {
	flags := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	_ = flags.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e, err := buildEnv(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	stats, err := e.projects.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("total:       %d\n", stats.Total)
	fmt.Printf("not started: %d\n", stats.NotStarted)
	fmt.Printf("in progress: %d\n", stats.InProgress)
	fmt.Printf("completed:   %d\n", stats.Completed)
	fmt.Printf("cancelled:   %d\n", stats.Cancelled)
	fmt.Printf("unassigned:  %d\n", stats.Unassigned)
	fmt.Printf("overdue:     %d\n", stats.Overdue)
	return nil
}

func printUsage() {
	fmt.Println(`Darius Projects Admin CLI

Usage:
  darius-admin <command> [arguments]

Commands:
  user        Manage users (create, list)
  project     Manage projects (create, list)
  stats       Show project statistics
  version     Print version information
  help        Show this help message

Examples:
  darius-admin user create --name Admin --email admin@example.com --password secret123 --role ADMIN
  darius-admin user list
  darius-admin project create --name "Launch" --end-date 2026-12-31T00:00:00Z
  darius-admin project list
  darius-admin stats

Use "darius-admin <command> --help" for more information about a command.`)
}

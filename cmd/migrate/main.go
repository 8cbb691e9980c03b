package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/liamcoop/decisiontables/internal/config"
	"github.com/liamcoop/decisiontables/internal/logger"
)

// migrator is the subset of *migrate.Migrate the commands use
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

func main() {
	var configPath, databaseURL, migrationsPath, command string

	flag.StringVar(&configPath, "config", os.Getenv("DT_CONFIG"), "Path to YAML configuration file")
	flag.StringVar(&databaseURL, "database", "", "Database URL (defaults to DATABASE_URL or the config file)")
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (defaults to the config file)")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, steps, version, force")
	flag.Parse()

	if databaseURL != "" {
		os.Setenv("DATABASE_URL", databaseURL)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	source := cfg.Database.MigrationsPath
	if migrationsPath != "" {
		source = "file://" + migrationsPath
	}

	logger.Info("connecting to database", "migrations", source)

	m, err := migrate.New(source, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to create migration instance", "error", err)
	}
	defer m.Close()

	msg, err := run(m, command, flag.Args())
	if err != nil {
		logger.Fatal("migration failed", "command", command, "error", err)
	}
	logger.Info(msg, "command", command)
}

// run executes one migration command and returns a summary line
func run(m migrator, command string, args []string) (string, error) {
	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			return "no migrations to run (database is up to date)", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to run migrations: %w", err)
		}
		return "migrations completed", nil

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return "", fmt.Errorf("failed to rollback migrations: %w", err)
		}
		return "rollback completed", nil

	case "steps":
		n, err := intArg(command, args)
		if err != nil {
			return "", err
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return "", fmt.Errorf("failed to migrate %d steps: %w", n, err)
		}
		return fmt.Sprintf("migrated %d steps", n), nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "no migration applied yet", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to get version: %w", err)
		}
		return fmt.Sprintf("current version: %d (dirty: %v)", version, dirty), nil

	case "force":
		version, err := intArg(command, args)
		if err != nil {
			return "", err
		}
		if err := m.Force(version); err != nil {
			return "", fmt.Errorf("failed to force version: %w", err)
		}
		return fmt.Sprintf("forced version to %d", version), nil

	default:
		return "", fmt.Errorf("unknown command: %s (use: up, down, steps, version, force)", command)
	}
}

func intArg(command string, args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s command requires a number: -command %s <n>", command, command)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[0], err)
	}
	return n, nil
}

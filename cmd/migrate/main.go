// Command migrate manages the proctor schema.
//
//	migrate -action up
//	migrate -action steps -n -1
//	migrate -action version
//	migrate -action force -version 3
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	action := flag.String("action", "up", "up, down, steps, version or force")
	steps := flag.Int("n", 0, "number of migrations for steps, negative rolls back")
	target := flag.Int("version", -1, "version for force")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.NewLogger(cfg.Environment)

	dbName, err := database.DatabaseName(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	db, err := database.OpenSQL(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	migrator, err := database.NewMigrator(db, dbName, database.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	switch *action {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "steps":
		if *steps == 0 {
			return errors.New("-n is required for steps")
		}
		err = migrator.Steps(*steps)
	case "version":
	case "force":
		if *target < 0 {
			return errors.New("-version is required for force")
		}
		err = migrator.Force(*target)
	default:
		return fmt.Errorf("invalid action %q (use up, down, steps, version, force)", *action)
	}
	if err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	pending, err := migrator.Pending()
	if err != nil {
		return err
	}

	logger.Info("schema",
		slog.String("action", *action),
		slog.String("database", dbName),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
		slog.Int("pending", pending),
	)
	if dirty {
		logger.Warn("schema is dirty, fix the failed migration and run force")
	}
	return nil
}

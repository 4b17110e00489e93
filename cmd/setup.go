package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/shared"
)

// Setup creates the config file from the embedded template when it is missing, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); os.IsNotExist(err) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if config, err := shared.LoadConfig(r.configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				shared.ApplyEnv(config)
				r.config = config
				r.writePlain("✓ Config file created: %s\n", r.configPath)
			}
		}
	}

	r.logger.Info("initializing database", "driver", r.config.Database.Driver, "path", r.config.Database.Path)
	if _, err := r.database(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready: %s\n", r.config.Database.Path)
}

// Migrate applies pending migrations, or rolls back the latest one with --rollback.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("rollback") {
		if _, err := r.database(); err != nil {
			return err
		}
		return r.writePlain("✓ Migrations applied\n")
	}

	db := r.db
	if db == nil {
		opened, err := shared.NewDatabase(r.config.Database.Driver, r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer opened.Close()
		db = opened
	}

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return r.writePlain("✓ Rolled back the latest migration\n")
}

package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify and credentials.qobuz (or set them in .env)\n")
	r.writePlain("2. Run 'qbsync spotify auth' to create the Spotify auth cache\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations. With --rollback it reverts the
// latest migration instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.logger.Warn("rolled back latest migration")
	}

	current, pending, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d, %d pending)\n", r.config.Database.Path, current, pending)
	if !r.config.Database.History {
		r.writePlain("Set database.history = true to record sync runs.\n")
	}
	return nil
}

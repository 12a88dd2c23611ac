package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template and, when the journal is enabled,
// initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file exists", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		shared.ApplyEnv(config)
		r.config = config
		r.writePlain("✓ Created %s\n", configPath)
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	if r.config.Database.Enabled {
		r.logger.Info("initializing database", "path", r.config.Database.Path)
		db, err := shared.OpenJournal(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		db.Close()
		r.writePlain("✓ Journal ready at %s\n", r.config.Database.Path)
	}

	r.writePlainln("Next steps:")
	step := 1
	if err := r.config.RequireSpotify(); err != nil {
		r.writePlain("%d. Set %s in %s or .env\n", step, err, configPath)
		step++
	}
	if err := r.config.RequireTidal(); err != nil {
		r.writePlain("%d. Set %s in %s or .env\n", step, err, configPath)
		step++
	}
	r.writePlain("%d. Run 'spotidal spotify auth' and 'spotidal tidal login'\n", step)
	r.writePlain("%d. Run 'spotidal migrate'\n", step+1)
	return nil
}

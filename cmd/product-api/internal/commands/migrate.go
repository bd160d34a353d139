package commands

import (
	"context"
	"errors"

	"github.com/dimitrije/product-api/internal/database"
	"github.com/dimitrije/product-api/internal/logger"
)

type MigrateCmd struct {
	DatabaseURL string `help:"PostgreSQL connection string." env:"DATABASE_URL"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if c.DatabaseURL == "" {
		return errors.New("database url is required (--database-url or DATABASE_URL)")
	}
	if err := database.Migrate(ctx, c.DatabaseURL); err != nil {
		return err
	}

	log.Info().Msg("database migrations completed")
	return nil
}

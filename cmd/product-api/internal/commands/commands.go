package commands

import (
	"context"
	"fmt"

	"github.com/dimitrije/product-api/internal/config"
	"github.com/dimitrije/product-api/internal/database"
	"github.com/dimitrije/product-api/internal/store"
	"github.com/dimitrije/product-api/internal/store/memory"
	"github.com/dimitrije/product-api/internal/store/postgres"
	"github.com/dimitrije/product-api/internal/store/sqlite"
	"github.com/rs/zerolog"
)

type Globals struct {
	Debug   bool
	Version string
}

// openStore builds the configured store backend.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreType {
	case config.StorePostgres:
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")
		}
		db, err := database.New(ctx, cfg.Pool)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("using postgres store")
		return postgres.New(db), nil

	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
		return st, nil

	default:
		log.Info().Msg("using in-memory store")
		return memory.New(), nil
	}
}

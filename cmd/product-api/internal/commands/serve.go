package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dimitrije/product-api/internal/config"
	"github.com/dimitrije/product-api/internal/handlers"
	"github.com/dimitrije/product-api/internal/hub"
	"github.com/dimitrije/product-api/internal/logger"
	"github.com/dimitrije/product-api/internal/metrics"
	"github.com/dimitrije/product-api/internal/server"
	"github.com/dimitrije/product-api/internal/services"
)

type ServeCmd struct {
	Port            string        `help:"HTTP listen port, overrides PORT." default:""`
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests on shutdown." default:"10s"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}

	log := logger.Setup(globals.Debug || !cfg.IsProduction())
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Str("env", cfg.Env).Str("store", cfg.StoreType).Msg("starting product api")

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	m := metrics.New()
	h := hub.NewHub(m, log)
	go h.Run(ctx)

	router := server.NewRouter(server.Options{
		Products:     services.NewProductService(st, nil, services.WithNotifier(handlers.NewProductNotifier(h))),
		Hub:          h,
		JWT:          services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry),
		Metrics:      m,
		Logger:       log,
		CORSOrigins:  cfg.CORSOrigins,
		ClientBuffer: cfg.ClientBuffer,
		Release:      cfg.IsProduction(),
	})

	return server.Run(ctx, server.NewHTTPServer(":"+cfg.Port, router), c.ShutdownTimeout)
}

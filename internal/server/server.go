package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dimitrije/product-api/internal/handlers"
	"github.com/dimitrije/product-api/internal/metrics"
	authmw "github.com/dimitrije/product-api/internal/middleware"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Products     handlers.ProductServiceInterface
	Hub          handlers.HubInterface
	JWT          *services.JWTService
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	CORSOrigins  []string
	ClientBuffer int
	Release      bool
}

// NewRouter wires the product API routes.
func NewRouter(opts Options) http.Handler {
	productHandler := handlers.NewProductHandler(opts.Products, opts.Metrics)
	eventsHandler := handlers.NewEventsHandler(opts.Hub, opts.ClientBuffer)
	wsHandler := handlers.NewWebSocketHandler(opts.Hub, opts.ClientBuffer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	app := drift.New()
	if opts.Release {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(authmw.RequestLogger(opts.Logger))
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "ETag", "If-Match", "If-None-Match", "Last-Modified", "If-Modified-Since"},
		MaxAge:       86400,
	}))
	app.Use(middleware.BodyParser())

	api := app.Group("/api")

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})

	protected := api.Group("")
	protected.Use(authmw.Auth(opts.JWT))

	protected.Get("/product", productHandler.List)
	protected.Post("/product", productHandler.Create)
	protected.Get("/product/:id", productHandler.Get)
	protected.Put("/product/:id", productHandler.Update)
	protected.Delete("/product/:id", productHandler.Delete)

	protected.Get("/events", eventsHandler.Connect)
	protected.Get("/ws", wsHandler.Connect)

	metricsHandler := opts.Metrics.Handler()
	app.Get("/metrics", func(c *drift.Context) {
		metricsHandler.ServeHTTP(c.Response, c.Request)
		c.Abort()
	})

	return app
}

func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		// event streams stay open indefinitely
		WriteTimeout:   0,
		IdleTimeout:    5 * time.Minute,
		MaxHeaderBytes: 8 * 1024, // 8KiB
	}
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zerolog.Ctx(ctx).Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zerolog.Ctx(ctx).Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/rs/zerolog"
)

// RequestLogger attaches a request-scoped logger to the request context so
// handlers and services can use zerolog.Ctx.
func RequestLogger(log zerolog.Logger) drift.HandlerFunc {
	return func(c *drift.Context) {
		started := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Response.Header().Set("X-Request-ID", requestID)

		ctx := log.With().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		zerolog.Ctx(c.Request.Context()).Debug().
			Dur("duration", time.Since(started)).
			Msg("request handled")
	}
}

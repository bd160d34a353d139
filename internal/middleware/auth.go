package middleware

import (
	"strings"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/rs/zerolog"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"

	// AccessTokenParam carries the token for EventSource and WebSocket
	// clients, which cannot set request headers.
	AccessTokenParam = "access_token"
)

func Auth(jwtService *services.JWTService) drift.HandlerFunc {
	return func(c *drift.Context) {
		token, msg := bearerToken(c)
		if token == "" {
			c.Unauthorized(msg)
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("rejected access token")
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)

		ctx := zerolog.Ctx(c.Request.Context()).With().
			Stringer("user_id", claims.UserID).
			Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func bearerToken(c *drift.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.QueryParam(AccessTokenParam); token != "" {
			return token, ""
		}
		return "", "missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", "invalid authorization header format"
	}
	return parts[1], ""
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func GetPrincipal(c *drift.Context) models.Principal {
	p := models.Principal{ID: GetUserID(c)}
	if name, ok := c.Get(UsernameKey); ok {
		p.Username, _ = name.(string)
	}
	return p
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/google/uuid"
)

// TokenCmd mints an access token for local development against a server
// sharing the same secret.
type TokenCmd struct {
	Secret   string        `help:"JWT signing secret." env:"JWT_SECRET"`
	UserID   string        `help:"Principal id. A random one is generated when empty." name:"user-id"`
	Username string        `help:"Username claim." default:"dev"`
	Expiry   time.Duration `help:"Token lifetime." default:"1h"`
}

func (c *TokenCmd) Run(_ context.Context, _ *Globals) error {
	if c.Secret == "" {
		return errors.New("jwt secret is required (--secret or JWT_SECRET)")
	}

	id := uuid.New()
	if c.UserID != "" {
		parsed, err := uuid.Parse(c.UserID)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		id = parsed
	}

	token, err := services.NewJWTService(c.Secret, c.Expiry).
		GenerateAccessToken(models.Principal{ID: id, Username: c.Username})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, token)
	return err
}

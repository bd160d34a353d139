package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Product is an owned, versioned record in the product collection.
// RowID is the store's internal identity and changes on every replace;
// clients address a product only by ID and Version.
type Product struct {
	RowID     uuid.UUID       `json:"-"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Amount    float64         `json:"amount"`
	Price     float64         `json:"price"`
	Data      json.RawMessage `json:"data,omitempty"`
	Owner     uuid.UUID       `json:"owner"`
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Principal is the authenticated identity making a request.
type Principal struct {
	ID       uuid.UUID
	Username string
}

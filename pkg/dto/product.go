package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ProductRequest struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Amount  float64         `json:"amount"`
	Price   float64         `json:"price"`
	Data    json.RawMessage `json:"data,omitempty"`
	Version int             `json:"version,omitempty"`
}

type ProductResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Amount    float64         `json:"amount"`
	Price     float64         `json:"price"`
	Data      json.RawMessage `json:"data,omitempty"`
	Owner     uuid.UUID       `json:"owner"`
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type ProductDeletedEvent struct {
	ID string `json:"id"`
}

type VersionConflictResponse struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	CurrentVersion int    `json:"current_version"`
}

type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

package services

import (
	"github.com/dimitrije/product-api/internal/models"
	"github.com/google/uuid"
)

// CanAccess reports whether principal may read, update or delete p.
func CanAccess(p *models.Product, principal uuid.UUID) bool {
	return p != nil && principal != uuid.Nil && p.Owner == principal
}

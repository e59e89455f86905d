package contacts

import (
	"context"

	"github.com/dmitrijs2005/mclink/internal/client/models"
)

// Repository describes storage operations for mirrored contacts.
type Repository interface {
	// Upsert inserts a new contact or replaces the existing row with the
	// same public key.
	Upsert(ctx context.Context, c *models.Contact) error

	// GetAll returns every stored contact ordered by name.
	GetAll(ctx context.Context) ([]models.Contact, error)

	// GetByKey returns the contact with the exact public key, or
	// common.ErrorNotFound.
	GetByKey(ctx context.Context, key []byte) (*models.Contact, error)

	// GetByPrefix returns the first contact whose public key starts with
	// prefix, or common.ErrorNotFound.
	GetByPrefix(ctx context.Context, prefix []byte) (*models.Contact, error)
}

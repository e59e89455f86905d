// Package messages persists the local chat history and tracks each
// outgoing message through its delivery lifecycle.
package messages

import (
	"context"

	"github.com/dmitrijs2005/mclink/internal/client/models"
)

// Repository describes storage operations for chat messages.
type Repository interface {
	// Create inserts a new message row.
	Create(ctx context.Context, m *models.Message) error

	// GetByID returns one message, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Message, error)

	// MarkSent records that the device accepted the send and which ack
	// code to expect back.
	MarkSent(ctx context.Context, id string, ackCode uint32, routeType byte) error

	// MarkDelivered records the end-to-end confirmation.
	MarkDelivered(ctx context.Context, id string, rttMs uint32, attempts int) error

	// MarkFailed records that every attempt ran out without an ack.
	MarkFailed(ctx context.Context, id string, attempts int) error

	// ListByContact returns up to limit newest messages exchanged with
	// one contact, oldest first.
	ListByContact(ctx context.Context, key []byte, limit int) ([]models.Message, error)

	// ListRecent returns up to limit newest messages of any kind, oldest
	// first.
	ListRecent(ctx context.Context, limit int) ([]models.Message, error)
}

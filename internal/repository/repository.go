package repository

import (
	"context"
	"errors"

	"github.com/creatorhub/payout-service/internal/model"
)

// ErrNotFound is returned when no payout record matches the lookup
var ErrNotFound = errors.New("payout not found")

// PayoutRepository defines the interface for payout record storage
type PayoutRepository interface {
	// SavePayout saves or updates a payout record
	SavePayout(ctx context.Context, record *model.PayoutRecord) error

	// GetPayout retrieves a record by ID
	GetPayout(ctx context.Context, id string) (*model.PayoutRecord, error)

	// GetByProviderReference retrieves a record by the provider's reference
	GetByProviderReference(ctx context.Context, reference string) (*model.PayoutRecord, error)

	// GetByInternalReference retrieves a record by the generated tx_ref /
	// sender_batch_id
	GetByInternalReference(ctx context.Context, reference string) (*model.PayoutRecord, error)

	// ListPayouts retrieves records with optional filters
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]*model.PayoutRecord, error)
}

// PayoutFilter defines filters for listing payout records
type PayoutFilter struct {
	Status model.PayoutStatus
	Method model.Method
	UserID string
	Limit  int
}

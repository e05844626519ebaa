package customer

import (
	"context"

	"github.com/google/uuid"
)

// Repository provides access to customer accounts.
// Implementations return shared.ErrNotFound when a lookup matches nothing.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByServiceNumber(ctx context.Context, serviceNumber string) (*Customer, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Save(ctx context.Context, customer *Customer) error
}

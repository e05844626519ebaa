package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormTransactionManager implements billing.TransactionManager on top of a
// GORM connection. Per-customer serialization uses a transaction-scoped
// Postgres advisory lock keyed by the customer ID, so two payments or a
// payment and a reconciliation for the same customer never interleave while
// unrelated customers proceed in parallel.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a new GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// WithinCustomerTransaction runs fn inside a database transaction holding the
// advisory lock for the given customer. The lock is released automatically at
// commit or rollback.
func (m *GormTransactionManager) WithinCustomerTransaction(
	ctx context.Context,
	customerID uuid.UUID,
	fn func(ctx context.Context, tc billing.TransactionContext) error,
) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"SELECT pg_advisory_xact_lock(hashtextextended(?::text, 0))",
			customerID.String(),
		).Error; err != nil {
			return err
		}
		return fn(ctx, &gormTransactionContext{tx: tx})
	})
	if err != nil {
		return translateTxError(err)
	}
	return nil
}

// gormTransactionContext exposes transaction-bound repositories
type gormTransactionContext struct {
	tx *gorm.DB
}

func (c *gormTransactionContext) Invoices() billing.InvoiceRepository {
	return NewGormInvoiceRepository(c.tx)
}

func (c *gormTransactionContext) Payments() billing.PaymentRepository {
	return NewGormPaymentRepository(c.tx)
}

// translateTxError maps low-level database failures onto domain errors.
// Serialization failures and deadlocks surface as a concurrency conflict the
// caller may retry; everything else passes through unchanged.
func translateTxError(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return shared.ErrConcurrencyConflict
		case "23505": // unique_violation
			return shared.ErrAlreadyExists
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	// GORM may wrap driver errors without preserving the pq type
	msg := err.Error()
	if strings.Contains(msg, "could not serialize access") || strings.Contains(msg, "deadlock detected") {
		return shared.ErrConcurrencyConflict
	}
	if strings.Contains(msg, "duplicate key value") {
		return shared.ErrAlreadyExists
	}

	return err
}

// Ensure GormTransactionManager implements billing.TransactionManager
var _ billing.TransactionManager = (*GormTransactionManager)(nil)

package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRepository provides access to the invoice ledger.
// Implementations return shared.ErrNotFound when a lookup matches nothing.
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByCustomer returns all invoices for a customer ordered newest-first
	// (period start descending, issuance time descending on ties).
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]Invoice, error)
	// FindLatest returns the customer's most recent invoice by period start,
	// the baseline anchor for balance computation.
	FindLatest(ctx context.Context, customerID uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
	// UpdateStatus persists a reconciler-decided status transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error
}

// PaymentRepository provides access to the append-only payment ledger.
type PaymentRepository interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]Payment, error)
	FindByGatewayReference(ctx context.Context, ref string) (*Payment, error)
	// SumCompletedAfter sums completed payments with paid_at strictly after the
	// given instant - the only delta applied on top of the baseline.
	SumCompletedAfter(ctx context.Context, customerID uuid.UUID, after time.Time) (decimal.Decimal, error)
	Insert(ctx context.Context, payment *Payment) error
	// SetCreditNote attaches the informational overpayment note to a payment.
	SetCreditNote(ctx context.Context, id uuid.UUID, note string) error
}

// AutoPayRepository persists auto-pay enrollments.
type AutoPayRepository interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*AutoPayEnrollment, error)
	Save(ctx context.Context, enrollment *AutoPayEnrollment) error
}

// TransactionContext exposes the ledger operations available inside a
// transaction. It is deliberately narrow: the reconciler and the payment
// orchestrator are the only writers of invoice status and payment rows.
type TransactionContext interface {
	Invoices() InvoiceRepository
	Payments() PaymentRepository
}

// TransactionManager runs a unit of work atomically for a single customer.
// Concurrent invocations for the same customer are serialized so that a
// reconciliation never reads a stale baseline; different customers proceed
// in parallel.
type TransactionManager interface {
	WithinCustomerTransaction(ctx context.Context, customerID uuid.UUID, fn func(ctx context.Context, tc TransactionContext) error) error
}

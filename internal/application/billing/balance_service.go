package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/customer"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceService derives a customer's current balance from ledger state.
// The balance is never stored: the latest invoice's cumulative total is the
// baseline and completed payments after its issuance are the only delta.
type BalanceService struct {
	customers customer.Repository
	invoices  billing.InvoiceRepository
	payments  billing.PaymentRepository
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(
	customers customer.Repository,
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
) *BalanceService {
	return &BalanceService{
		customers: customers,
		invoices:  invoices,
		payments:  payments,
	}
}

// CustomerBalance is the derived balance snapshot for a customer
type CustomerBalance struct {
	CustomerID uuid.UUID `json:"customer_id"`
	// Outstanding is the current debt, always >= 0.
	Outstanding decimal.Decimal `json:"outstanding"`
	// AvailableCredit is overpayment beyond the baseline, reported separately
	// and never folded into Outstanding as a negative value.
	AvailableCredit   decimal.Decimal `json:"available_credit"`
	BaselineInvoiceID *uuid.UUID      `json:"baseline_invoice_id,omitempty"`
	ComputedAt        time.Time       `json:"computed_at"`
}

// CurrentBalance computes the customer's outstanding balance and available credit
func (s *BalanceService) CurrentBalance(ctx context.Context, customerID uuid.UUID) (*CustomerBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "current_balance")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customerID.String())

	exists, err := s.customers.Exists(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if !exists {
		telemetry.RecordError(span, shared.ErrCustomerNotFound)
		return nil, shared.ErrCustomerNotFound
	}

	balance, err := computeBalance(ctx, s.invoices, s.payments, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"outstanding", balance.Outstanding.String(),
		"available_credit", balance.AvailableCredit.String(),
	)
	return balance, nil
}

// computeBalance runs the baseline-and-subtract derivation against the given
// repositories. The reconciler reuses it with transaction-scoped repositories
// so that reads inside applyPayment see the same snapshot they will write to.
func computeBalance(
	ctx context.Context,
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
	customerID uuid.UUID,
) (*CustomerBalance, error) {
	latest, err := invoices.FindLatest(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// No invoice ever issued: nothing owed, nothing credited.
			return &CustomerBalance{
				CustomerID:      customerID,
				Outstanding:     decimal.Zero,
				AvailableCredit: decimal.Zero,
				ComputedAt:      time.Now(),
			}, nil
		}
		return nil, fmt.Errorf("failed to load baseline invoice: %w", err)
	}

	paidAfter, err := payments.SumCompletedAfter(ctx, customerID, latest.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments after baseline: %w", err)
	}

	outstanding, credit := billing.SettleBaseline(latest.CumulativeTotal, paidAfter)
	baselineID := latest.ID
	return &CustomerBalance{
		CustomerID:        customerID,
		Outstanding:       outstanding,
		AvailableCredit:   credit,
		BaselineInvoiceID: &baselineID,
		ComputedAt:        time.Now(),
	}, nil
}

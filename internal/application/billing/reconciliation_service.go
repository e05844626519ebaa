package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/customer"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconciliationService recomputes and persists invoice statuses from ledger
// state. Reconciliation is a pure function of the ledgers: running it twice
// with no intervening payment yields zero changes the second time.
type ReconciliationService struct {
	customers customer.Repository
	invoices  billing.InvoiceRepository
	payments  billing.PaymentRepository
	tx        billing.TransactionManager
	logger    *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	customers customer.Repository,
	invoices billing.InvoiceRepository,
	payments billing.PaymentRepository,
	tx billing.TransactionManager,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		customers: customers,
		invoices:  invoices,
		payments:  payments,
		tx:        tx,
		logger:    logger,
	}
}

// StatusChange records one invoice status transition made by a reconciliation
type StatusChange struct {
	InvoiceID   uuid.UUID             `json:"invoice_id"`
	PeriodStart time.Time             `json:"period_start"`
	OldStatus   billing.InvoiceStatus `json:"old_status"`
	NewStatus   billing.InvoiceStatus `json:"new_status"`
	// AmountOwed is the debt remaining on the invoice after this reconciliation.
	AmountOwed decimal.Decimal `json:"amount_owed"`
}

// ReconciliationResult summarizes a reconciliation run
type ReconciliationResult struct {
	CustomerID      uuid.UUID       `json:"customer_id"`
	UpdatedCount    int             `json:"updated_count"`
	PaidCount       int             `json:"paid_count"`
	PendingCount    int             `json:"pending_count"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	Changes         []StatusChange  `json:"changes"`
}

// Reconcile recomputes invoice statuses for the customer inside its own
// customer-serialized transaction. A reconciliation that finds nothing to
// change is a normal, successful result.
func (s *ReconciliationService) Reconcile(ctx context.Context, customerID uuid.UUID) (*ReconciliationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "reconcile")
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

	var result *ReconciliationResult
	err = s.tx.WithinCustomerTransaction(ctx, customerID, func(ctx context.Context, tc billing.TransactionContext) error {
		var txErr error
		result, txErr = s.reconcileInTx(ctx, tc, customerID)
		return txErr
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"updated_count", result.UpdatedCount,
		"new_balance", result.NewBalance.String(),
	)
	return result, nil
}

// reconcileInTx runs the reverse-FIFO walk against transaction-scoped
// repositories and persists only the statuses that actually changed. The
// payment orchestrator calls it inside its own transaction so that recording
// a payment and reconciling its effect commit or roll back together.
func (s *ReconciliationService) reconcileInTx(
	ctx context.Context,
	tc billing.TransactionContext,
	customerID uuid.UUID,
) (*ReconciliationResult, error) {
	balance, err := computeBalance(ctx, tc.Invoices(), tc.Payments(), customerID)
	if err != nil {
		return nil, err
	}

	invoices, err := tc.Invoices().FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	summary, err := billing.AllocateOutstanding(invoices, balance.Outstanding)
	if err != nil {
		return nil, err
	}
	if summary.Unallocated.IsPositive() {
		s.logger.Warn("Outstanding balance exceeds total invoice charges",
			zap.String("customer_id", customerID.String()),
			zap.String("unallocated", summary.Unallocated.String()),
		)
	}

	stored := make(map[uuid.UUID]billing.InvoiceStatus, len(invoices))
	for _, inv := range invoices {
		stored[inv.ID] = inv.Status
	}

	result := &ReconciliationResult{
		CustomerID:      customerID,
		PaidCount:       summary.PaidCount,
		PendingCount:    summary.PendingCount,
		NewBalance:      balance.Outstanding,
		AvailableCredit: balance.AvailableCredit,
		Changes:         make([]StatusChange, 0),
	}

	for _, alloc := range summary.Allocations {
		oldStatus := stored[alloc.InvoiceID]
		if oldStatus == alloc.Status {
			continue
		}
		if err := tc.Invoices().UpdateStatus(ctx, alloc.InvoiceID, alloc.Status); err != nil {
			return nil, fmt.Errorf("failed to persist status of invoice %s: %w", alloc.InvoiceID, err)
		}
		result.Changes = append(result.Changes, StatusChange{
			InvoiceID:   alloc.InvoiceID,
			PeriodStart: alloc.PeriodStart,
			OldStatus:   oldStatus,
			NewStatus:   alloc.Status,
			AmountOwed:  alloc.AmountOwed,
		})
	}
	result.UpdatedCount = len(result.Changes)

	return result, nil
}

// PartialPayments returns the per-invoice amount-owed map for display:
// "this invoice owes $X of its $Y charge". Read-only, no transaction needed.
func (s *ReconciliationService) PartialPayments(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "partial_payments")
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

	invoices, err := s.invoices.FindByCustomer(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	return billing.PartialPaymentMap(invoices, balance.Outstanding)
}

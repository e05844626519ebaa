package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/customer"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/domain/shared/valueobject"
	"github.com/aquaflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultApplyPaymentTimeout bounds the applyPayment transaction when the
// configuration does not set one.
const DefaultApplyPaymentTimeout = 10 * time.Second

// PaymentService is the payment-application orchestrator: recording a payment
// and reconciling its effect on invoice statuses are one atomic unit. No
// payment row may exist without its reconciliation having run, and vice versa.
type PaymentService struct {
	customers customer.Repository
	payments  billing.PaymentRepository
	recon     *ReconciliationService
	tx        billing.TransactionManager
	txTimeout time.Duration
	logger    *zap.Logger
}

// NewPaymentService creates a new PaymentService. txTimeout bounds the whole
// applyPayment transaction; zero selects DefaultApplyPaymentTimeout.
func NewPaymentService(
	customers customer.Repository,
	payments billing.PaymentRepository,
	recon *ReconciliationService,
	tx billing.TransactionManager,
	txTimeout time.Duration,
	logger *zap.Logger,
) *PaymentService {
	if txTimeout <= 0 {
		txTimeout = DefaultApplyPaymentTimeout
	}
	return &PaymentService{
		customers: customers,
		payments:  payments,
		recon:     recon,
		tx:        tx,
		txTimeout: txTimeout,
		logger:    logger,
	}
}

// ApplyPaymentRequest represents a request to apply a collected payment.
// The caller has already authorized/collected the funds; the gateway call
// never happens inside the ledger transaction.
type ApplyPaymentRequest struct {
	CustomerID uuid.UUID
	Amount     decimal.Decimal
	Source     billing.PaymentSource
	// GatewayReference is an optional external dedupe key (unique per payment).
	GatewayReference string
	Metadata         billing.PaymentMetadata
}

// ApplyPaymentResult bundles the created payment with its reconciliation
type ApplyPaymentResult struct {
	Payment        *billing.Payment      `json:"payment"`
	Reconciliation *ReconciliationResult `json:"reconciliation"`
}

// ApplyPayment validates the request, inserts a completed payment and
// reconciles the customer's invoices, all inside one customer-serialized
// transaction. On any failure the whole operation rolls back; the caller owns
// retry and must dedupe with an external key since each call creates a new
// payment row.
func (s *PaymentService) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*ApplyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentSource, req.Source.String(),
	)

	if !req.Amount.IsPositive() {
		telemetry.RecordError(span, shared.ErrInvalidAmount)
		return nil, shared.ErrInvalidAmount
	}
	if !req.Source.IsValid() {
		err := shared.NewDomainError("INVALID_SOURCE", fmt.Sprintf("Unknown payment source %q", req.Source))
		telemetry.RecordError(span, err)
		return nil, err
	}

	exists, err := s.customers.Exists(ctx, req.CustomerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if !exists {
		telemetry.RecordError(span, shared.ErrCustomerNotFound)
		return nil, shared.ErrCustomerNotFound
	}

	if req.GatewayReference != "" {
		if err := s.checkDuplicateReference(ctx, req.GatewayReference); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	payment, err := billing.NewCompletedPayment(
		req.CustomerID,
		valueobject.NewMoneyCLP(req.Amount),
		req.Source,
		req.Metadata,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.GatewayReference != "" {
		payment.WithGatewayReference(req.GatewayReference)
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var reconciliation *ReconciliationResult
	err = s.tx.WithinCustomerTransaction(ctx, req.CustomerID, func(ctx context.Context, tc billing.TransactionContext) error {
		if err := tc.Payments().Insert(ctx, payment); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		var txErr error
		reconciliation, txErr = s.recon.reconcileInTx(ctx, tc, req.CustomerID)
		if txErr != nil {
			return txErr
		}

		if reconciliation.AvailableCredit.IsPositive() {
			note := fmt.Sprintf("Overpayment of %s CLP retained as credit toward future invoices",
				reconciliation.AvailableCredit.String())
			payment.AttachCreditNote(note)
			if err := tc.Payments().SetCreditNote(ctx, payment.ID, note); err != nil {
				return fmt.Errorf("failed to attach credit note: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Payment applied",
		zap.String("payment_id", payment.ID.String()),
		zap.String("customer_id", req.CustomerID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("source", req.Source.String()),
		zap.Int("invoices_updated", reconciliation.UpdatedCount),
		zap.String("new_balance", reconciliation.NewBalance.String()),
	)
	telemetry.AddEvent(span, "payment_applied",
		"payment_id", payment.ID.String(),
		"new_balance", reconciliation.NewBalance.String(),
	)

	return &ApplyPaymentResult{
		Payment:        payment,
		Reconciliation: reconciliation,
	}, nil
}

// checkDuplicateReference rejects a payment whose gateway reference was already
// recorded, so gateway callback retries do not double-charge the ledger.
func (s *PaymentService) checkDuplicateReference(ctx context.Context, ref string) error {
	existing, err := s.payments.FindByGatewayReference(ctx, ref)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check gateway reference: %w", err)
	}
	if existing != nil {
		return shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("Payment with gateway reference %q already recorded", ref))
	}
	return nil
}

package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AutoPayService tracks auto-pay enrollments and the outcome of scheduled
// charges. The billing-cycle scheduler authorizes the charge with the gateway
// first and then reports the outcome here: successes flow into the payment
// orchestrator, repeated failures disable the enrollment.
type AutoPayService struct {
	enrollments billing.AutoPayRepository
	payments    *PaymentService
	logger      *zap.Logger
}

// NewAutoPayService creates a new AutoPayService
func NewAutoPayService(
	enrollments billing.AutoPayRepository,
	payments *PaymentService,
	logger *zap.Logger,
) *AutoPayService {
	return &AutoPayService{
		enrollments: enrollments,
		payments:    payments,
		logger:      logger,
	}
}

// Enroll activates auto-pay for a customer, or re-activates a disabled enrollment
func (s *AutoPayService) Enroll(ctx context.Context, customerID uuid.UUID) (*billing.AutoPayEnrollment, error) {
	existing, err := s.enrollments.FindByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	if existing != nil {
		if existing.IsActive() {
			return existing, nil
		}
		if err := existing.Reenroll(); err != nil {
			return nil, err
		}
		if err := s.enrollments.Save(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to save enrollment: %w", err)
		}
		return existing, nil
	}

	enrollment, err := billing.NewAutoPayEnrollment(customerID)
	if err != nil {
		return nil, err
	}
	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}
	return enrollment, nil
}

// AutoPayChargeResult summarizes a reported auto-pay charge outcome
type AutoPayChargeResult struct {
	Enrollment *billing.AutoPayEnrollment `json:"enrollment"`
	// Applied is set when the gateway charge succeeded and the payment was
	// recorded and reconciled.
	Applied *ApplyPaymentResult `json:"applied,omitempty"`
	// Disabled is true when this outcome exhausted the failure allowance.
	Disabled bool `json:"disabled"`
}

// RecordChargeOutcome registers the result of a scheduled gateway charge.
// Success applies the payment through the orchestrator and resets the failure
// counter; failure increments it and disables the enrollment after the third
// consecutive miss.
func (s *AutoPayService) RecordChargeOutcome(
	ctx context.Context,
	customerID uuid.UUID,
	amount decimal.Decimal,
	gatewayReference string,
	succeeded bool,
) (*AutoPayChargeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "autopay", "record_charge_outcome")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, customerID.String(),
		"succeeded", succeeded,
	)

	enrollment, err := s.enrollments.FindByCustomer(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_ENROLLED", "Customer has no auto-pay enrollment")
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if !enrollment.IsActive() {
		err := shared.NewDomainError("INVALID_STATE", "Auto-pay enrollment is disabled")
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !succeeded {
		disabled, err := enrollment.RecordFailure()
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if err := s.enrollments.Save(ctx, enrollment); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save enrollment: %w", err)
		}
		if disabled {
			s.logger.Warn("Auto-pay disabled after repeated charge failures",
				zap.String("customer_id", customerID.String()),
				zap.Int("consecutive_failures", enrollment.ConsecutiveFailures),
			)
		}
		return &AutoPayChargeResult{Enrollment: enrollment, Disabled: disabled}, nil
	}

	applied, err := s.payments.ApplyPayment(ctx, ApplyPaymentRequest{
		CustomerID:       customerID,
		Amount:           amount,
		Source:           billing.PaymentSourceAutoPay,
		GatewayReference: gatewayReference,
	})
	if err != nil {
		// The gateway collected but the ledger write failed: surface the error
		// without touching the failure counter, the caller retries the apply.
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := enrollment.RecordSuccess(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}

	return &AutoPayChargeResult{Enrollment: enrollment, Applied: applied}, nil
}

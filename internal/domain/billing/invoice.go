package billing

import (
	"fmt"
	"time"

	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the settlement status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING" // Part of the customer's current debt
	InvoiceStatusPaid    InvoiceStatus = "PAID"    // Fully covered by received payments
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPaid
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// Invoice represents a billing document (boleta) for one customer and one billing
// period. CumulativeTotal is a snapshot taken at issuance time: the monthly charge
// plus whatever the customer still owed when the billing cycle emitted the invoice.
// It is never re-derived afterwards - the latest invoice's cumulative total is the
// authoritative baseline for balance computation.
//
// Status is maintained exclusively by the reconciler; nothing else may set it.
type Invoice struct {
	shared.BaseAggregateRoot
	CustomerID      uuid.UUID       `json:"customer_id"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	MonthlyCharge   decimal.Decimal `json:"monthly_charge"`
	CumulativeTotal decimal.Decimal `json:"cumulative_total"`
	IssuedAt        time.Time       `json:"issued_at"`
	Status          InvoiceStatus   `json:"status"`
}

// NewInvoice creates a new pending invoice for a billing period.
// priorOutstanding is the customer's outstanding balance at issuance time; it is
// folded into the cumulative total snapshot.
func NewInvoice(
	customerID uuid.UUID,
	periodStart, periodEnd time.Time,
	monthlyCharge valueobject.Money,
	priorOutstanding valueobject.Money,
) (*Invoice, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Billing period boundaries are required")
	}
	if !periodEnd.After(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period end must be after period start")
	}
	if monthlyCharge.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Monthly charge cannot be negative")
	}
	if priorOutstanding.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Prior outstanding balance cannot be negative")
	}

	cumulative, err := monthlyCharge.Add(priorOutstanding)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_AMOUNT", err.Error())
	}

	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		MonthlyCharge:     monthlyCharge.Amount(),
		CumulativeTotal:   cumulative.Amount(),
		IssuedAt:          time.Now(),
		Status:            InvoiceStatusPending,
	}, nil
}

// TransitionStatus moves the invoice to the given status.
// Only the reconciler calls this; invoice status is derived state, never set freely.
func (i *Invoice) TransitionStatus(to InvoiceStatus) error {
	if !to.IsValid() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Unknown invoice status %q", to))
	}
	if i.Status == to {
		return nil
	}
	i.Status = to
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	return nil
}

// IsPaid returns true if the invoice is fully covered by received payments
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsPending returns true if the invoice still carries debt
func (i *Invoice) IsPending() bool {
	return i.Status == InvoiceStatusPending
}

// Covers reports whether the given time falls within the invoice's billing period.
// The start boundary is inclusive, the end boundary exclusive.
func (i *Invoice) Covers(t time.Time) bool {
	return !t.Before(i.PeriodStart) && t.Before(i.PeriodEnd)
}

// GetMonthlyChargeMoney returns the monthly charge as Money
func (i *Invoice) GetMonthlyChargeMoney() valueobject.Money {
	return valueobject.NewMoneyCLP(i.MonthlyCharge)
}

// GetCumulativeTotalMoney returns the cumulative total as Money
func (i *Invoice) GetCumulativeTotalMoney() valueobject.Money {
	return valueobject.NewMoneyCLP(i.CumulativeTotal)
}

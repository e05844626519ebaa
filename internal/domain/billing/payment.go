package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	// PaymentStatusCompleted means the funds are collected; only completed
	// payments count toward the customer's balance.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	// PaymentStatusReversed marks a payment undone by an explicit reversal event.
	PaymentStatusReversed PaymentStatus = "REVERSED"
)

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusReversed
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentSource represents the channel that produced a payment
type PaymentSource string

const (
	PaymentSourceManual        PaymentSource = "MANUAL"         // Cashier / back-office entry
	PaymentSourceAutoPay       PaymentSource = "AUTO_PAY"       // Scheduled automatic billing-cycle charge
	PaymentSourceOnlineGateway PaymentSource = "ONLINE_GATEWAY" // Gateway callback (Transbank OneClick)
)

// IsValid checks if the payment source is valid
func (s PaymentSource) IsValid() bool {
	switch s {
	case PaymentSourceManual, PaymentSourceAutoPay, PaymentSourceOnlineGateway:
		return true
	}
	return false
}

// String returns the string representation of PaymentSource
func (s PaymentSource) String() string {
	return string(s)
}

// PaymentMetadata holds caller-supplied audit/display details for a payment,
// stored as JSONB. It never influences reconciliation arithmetic.
type PaymentMetadata map[string]string

// Value implements driver.Valuer interface for GORM to store as JSONB
func (m PaymentMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (m *PaymentMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = PaymentMetadata{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentMetadata: unsupported type")
	}

	if len(bytes) == 0 {
		*m = PaymentMetadata{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Payment represents a completed payment in the append-only payment ledger.
// Payments are immutable once completed; only the informational credit note
// may be attached afterwards, and reversals are separate explicit events.
type Payment struct {
	shared.BaseEntity
	CustomerID       uuid.UUID       `json:"customer_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaidAt           time.Time       `json:"paid_at"`
	Status           PaymentStatus   `json:"status"`
	Source           PaymentSource   `json:"source"`
	GatewayReference string          `json:"gateway_reference,omitempty"` // Dedupe key for gateway callbacks
	CreditNote       string          `json:"credit_note,omitempty"`
	Metadata         PaymentMetadata `json:"metadata,omitempty"`
}

// NewCompletedPayment creates a completed payment record.
// The caller guarantees the funds are already collected (gateway authorized or
// cash received); the ledger only records the fact.
func NewCompletedPayment(
	customerID uuid.UUID,
	amount valueobject.Money,
	source PaymentSource,
	metadata PaymentMetadata,
) (*Payment, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrCustomerNotFound
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Payment source is not valid")
	}

	return &Payment{
		BaseEntity: shared.NewBaseEntity(),
		CustomerID: customerID,
		Amount:     amount.Amount(),
		PaidAt:     time.Now(),
		Status:     PaymentStatusCompleted,
		Source:     source,
		Metadata:   metadata,
	}, nil
}

// WithGatewayReference sets the gateway reference used as an external dedupe key
func (p *Payment) WithGatewayReference(ref string) *Payment {
	p.GatewayReference = ref
	return p
}

// AttachCreditNote records a human-readable note about overpayment credit.
// Informational only: no numeric field changes.
func (p *Payment) AttachCreditNote(note string) {
	p.CreditNote = note
	p.UpdatedAt = time.Now()
}

// IsCompleted returns true if the payment counts toward the balance
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// GetAmountMoney returns the payment amount as Money
func (p *Payment) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyCLP(p.Amount)
}

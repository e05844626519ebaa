package billing

import (
	"time"

	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AutoPayStatus represents the state of a customer's auto-pay enrollment
type AutoPayStatus string

const (
	AutoPayStatusActive   AutoPayStatus = "ACTIVE"
	AutoPayStatusDisabled AutoPayStatus = "DISABLED" // Terminal after repeated charge failures
)

// IsValid checks if the status is a valid AutoPayStatus
func (s AutoPayStatus) IsValid() bool {
	return s == AutoPayStatusActive || s == AutoPayStatusDisabled
}

// String returns the string representation of AutoPayStatus
func (s AutoPayStatus) String() string {
	return string(s)
}

// MaxAutoPayFailures is the number of consecutive failed charges after which
// an enrollment is disabled.
const MaxAutoPayFailures = 3

// AutoPayEnrollment tracks a customer's automatic billing-cycle charging as a
// small state machine: Active -> (failure x3) -> Disabled, Active -> (success)
// -> Active with the failure counter reset. Disabled is terminal until an
// operator re-enrolls the customer.
type AutoPayEnrollment struct {
	shared.BaseAggregateRoot
	CustomerID          uuid.UUID     `json:"customer_id"`
	Status              AutoPayStatus `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastAttemptAt       *time.Time    `json:"last_attempt_at"`
	DisabledAt          *time.Time    `json:"disabled_at"`
}

// NewAutoPayEnrollment enrolls a customer into auto-pay
func NewAutoPayEnrollment(customerID uuid.UUID) (*AutoPayEnrollment, error) {
	if customerID == uuid.Nil {
		return nil, shared.ErrCustomerNotFound
	}
	return &AutoPayEnrollment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		Status:            AutoPayStatusActive,
	}, nil
}

// IsActive returns true if the enrollment may still be charged
func (e *AutoPayEnrollment) IsActive() bool {
	return e.Status == AutoPayStatusActive
}

// RecordSuccess registers a successful charge and resets the failure counter
func (e *AutoPayEnrollment) RecordSuccess() error {
	if !e.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Cannot record a charge on a disabled enrollment")
	}
	now := time.Now()
	e.ConsecutiveFailures = 0
	e.LastAttemptAt = &now
	e.UpdatedAt = now
	e.IncrementVersion()
	return nil
}

// RecordFailure registers a failed charge attempt. Returns true when the
// failure exhausted the allowance and the enrollment transitioned to Disabled.
func (e *AutoPayEnrollment) RecordFailure() (disabled bool, err error) {
	if !e.IsActive() {
		return false, shared.NewDomainError("INVALID_STATE", "Cannot record a charge on a disabled enrollment")
	}
	now := time.Now()
	e.ConsecutiveFailures++
	e.LastAttemptAt = &now
	if e.ConsecutiveFailures >= MaxAutoPayFailures {
		e.Status = AutoPayStatusDisabled
		e.DisabledAt = &now
		disabled = true
	}
	e.UpdatedAt = now
	e.IncrementVersion()
	return disabled, nil
}

// Reenroll reactivates a disabled enrollment (operator action)
func (e *AutoPayEnrollment) Reenroll() error {
	if e.IsActive() {
		return shared.NewDomainError("INVALID_STATE", "Enrollment is already active")
	}
	now := time.Now()
	e.Status = AutoPayStatusActive
	e.ConsecutiveFailures = 0
	e.DisabledAt = nil
	e.UpdatedAt = now
	e.IncrementVersion()
	return nil
}

package customer

import (
	"strings"
	"time"

	"github.com/aquaflow/backend/internal/domain/shared"
)

// Status represents the service status of a customer account
type Status string

const (
	StatusActive    Status = "ACTIVE"    // Service connected, billed every cycle
	StatusSuspended Status = "SUSPENDED" // Service cut for non-payment, debt still collectible
	StatusClosed    Status = "CLOSED"    // Contract terminated
)

// IsValid checks if the status is a valid customer Status
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Customer represents a water-service account holder. Billing state (invoices,
// payments, balance) lives in the ledgers; the customer record carries identity
// and service data only, so there is no stored balance to drift.
type Customer struct {
	shared.BaseAggregateRoot
	ServiceNumber string `json:"service_number"` // Printed on every boleta
	Name          string `json:"name"`
	Route         string `json:"route"` // Meter-reading route code
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Status        Status `json:"status"`
}

// NewCustomer creates a new active customer account
func NewCustomer(serviceNumber, name, route, address string) (*Customer, error) {
	serviceNumber = strings.TrimSpace(serviceNumber)
	if serviceNumber == "" {
		return nil, shared.NewDomainError("INVALID_SERVICE_NUMBER", "Service number cannot be empty")
	}
	if len(serviceNumber) > 20 {
		return nil, shared.NewDomainError("INVALID_SERVICE_NUMBER", "Service number cannot exceed 20 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}

	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ServiceNumber:     serviceNumber,
		Name:              name,
		Route:             route,
		Address:           address,
		Status:            StatusActive,
	}, nil
}

// SetContact updates the customer's contact details
func (c *Customer) SetContact(phone, email string) {
	c.Phone = phone
	c.Email = strings.ToLower(strings.TrimSpace(email))
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

// Suspend cuts the service for non-payment; the debt remains collectible
func (c *Customer) Suspend() error {
	if c.Status != StatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only active customers can be suspended")
	}
	c.Status = StatusSuspended
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// Reconnect restores a suspended service
func (c *Customer) Reconnect() error {
	if c.Status != StatusSuspended {
		return shared.NewDomainError("INVALID_STATE", "Only suspended customers can be reconnected")
	}
	c.Status = StatusActive
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// Close terminates the contract
func (c *Customer) Close() error {
	if c.Status == StatusClosed {
		return shared.NewDomainError("INVALID_STATE", "Customer is already closed")
	}
	c.Status = StatusClosed
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

// IsActive returns true if the account is in active service
func (c *Customer) IsActive() bool {
	return c.Status == StatusActive
}

package dto

import (
	"time"
)

// ApplyPaymentRequest is the payload for recording a collected payment.
// Amount is a decimal string so no precision is lost in JSON transit.
type ApplyPaymentRequest struct {
	Amount           string            `json:"amount" binding:"required"`
	Source           string            `json:"source" binding:"required,oneof=MANUAL AUTO_PAY ONLINE_GATEWAY"`
	GatewayReference string            `json:"gateway_reference" binding:"omitempty,max=100"`
	Metadata         map[string]string `json:"metadata" binding:"omitempty"`
}

// AutoPayOutcomeRequest reports the result of a scheduled gateway charge
type AutoPayOutcomeRequest struct {
	Amount           string `json:"amount" binding:"omitempty"`
	GatewayReference string `json:"gateway_reference" binding:"omitempty,max=100"`
	Succeeded        *bool  `json:"succeeded" binding:"required"`
}

// BalanceResponse is the derived balance for a customer
type BalanceResponse struct {
	CustomerID        string    `json:"customer_id"`
	Outstanding       string    `json:"outstanding"`
	AvailableCredit   string    `json:"available_credit"`
	BaselineInvoiceID string    `json:"baseline_invoice_id,omitempty"`
	ComputedAt        time.Time `json:"computed_at"`
}

// InvoiceResponse is one invoice enriched with its remaining debt
type InvoiceResponse struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	MonthlyCharge   string    `json:"monthly_charge"`
	CumulativeTotal string    `json:"cumulative_total"`
	IssuedAt        time.Time `json:"issued_at"`
	Status          string    `json:"status"`
	// AmountOwed is how much of the monthly charge is still unpaid
	// after the current reverse-chronological allocation.
	AmountOwed string `json:"amount_owed"`
}

// CustomerResponse is a customer account
type CustomerResponse struct {
	ID            string `json:"id"`
	ServiceNumber string `json:"service_number"`
	Name          string `json:"name"`
	Route         string `json:"route,omitempty"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Status        string `json:"status"`
	TimestampResponse
}

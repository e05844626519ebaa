package handler

import (
	"context"

	appbilling "github.com/aquaflow/backend/internal/application/billing"
	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceService computes derived customer balances
type BalanceService interface {
	CurrentBalance(ctx context.Context, customerID uuid.UUID) (*appbilling.CustomerBalance, error)
}

// ReconciliationService recomputes invoice statuses from ledger state
type ReconciliationService interface {
	Reconcile(ctx context.Context, customerID uuid.UUID) (*appbilling.ReconciliationResult, error)
	PartialPayments(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// PaymentService records payments and reconciles atomically
type PaymentService interface {
	ApplyPayment(ctx context.Context, req appbilling.ApplyPaymentRequest) (*appbilling.ApplyPaymentResult, error)
}

// AutoPayService manages auto-pay enrollments and charge outcomes
type AutoPayService interface {
	Enroll(ctx context.Context, customerID uuid.UUID) (*billing.AutoPayEnrollment, error)
	RecordChargeOutcome(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, gatewayReference string, succeeded bool) (*appbilling.AutoPayChargeResult, error)
}

// BillingHandler exposes the billing pipeline over HTTP. It binds and
// validates DTOs and maps errors; all billing logic lives in the services.
type BillingHandler struct {
	BaseHandler
	balance  BalanceService
	recon    ReconciliationService
	payments PaymentService
	autopay  AutoPayService
	invoices billing.InvoiceRepository
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(
	balance BalanceService,
	recon ReconciliationService,
	payments PaymentService,
	autopay AutoPayService,
	invoices billing.InvoiceRepository,
) *BillingHandler {
	return &BillingHandler{
		balance:  balance,
		recon:    recon,
		payments: payments,
		autopay:  autopay,
		invoices: invoices,
	}
}

// RegisterRoutes registers billing routes on the given router group
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	{
		customers.GET("/:id/balance", h.GetBalance)
		customers.POST("/:id/reconcile", h.Reconcile)
		customers.POST("/:id/payments", h.ApplyPayment)
		customers.GET("/:id/invoices", h.ListInvoices)
		customers.POST("/:id/autopay", h.EnrollAutoPay)
		customers.POST("/:id/autopay/outcomes", h.RecordAutoPayOutcome)
	}
}

// GetBalance returns the customer's derived balance and available credit
func (h *BillingHandler) GetBalance(c *gin.Context) {
	customerID, ok := h.bindCustomerID(c)
	if !ok {
		return
	}

	balance, err := h.balance.CurrentBalance(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.BalanceResponse{
		CustomerID:      balance.CustomerID.String(),
		Outstanding:     balance.Outstanding.String(),
		AvailableCredit: balance.AvailableCredit.String(),
		ComputedAt:      balance.ComputedAt,
	}
	if balance.BaselineInvoiceID != nil {
		resp.BaselineInvoiceID = balance.BaselineInvoiceID.String()
	}
	h.Success(c, resp)
}

// Reconcile recomputes the customer's invoice statuses
func (h *BillingHandler) Reconcile(c *gin.Context) {
	customerID, ok := h.bindCustomerID(c)
	if !ok {
		return
	}

	result, err := h.recon.Reconcile(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ApplyPayment records a collected payment and reconciles atomically
func (h *BillingHandler) ApplyPayment(c *gin.Context) {
	customerID, ok := h.bindCustomerID(c)
	if !ok {
		return
	}

	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidAmount, "Amount is not a valid decimal")
		return
	}

	result, err := h.payments.ApplyPayment(c.Request.Context(), appbilling.ApplyPaymentRequest{
		CustomerID:       customerID,
		Amount:           amount,
		Source:           billing.PaymentSource(req.Source),
		GatewayReference: req.GatewayReference,
		Metadata:         req.Metadata,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListInvoices returns the customer's invoices newest-first with the
// remaining debt per invoice.
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	customerID, ok := h.bindCustomerID(c)
	if !ok {
		return
	}

	owed, err := h.recon.PartialPayments(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invoices, err := h.invoices.FindByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		amountOwed := decimal.Zero
		if v, ok := owed[inv.ID]; ok {
			amountOwed = v
		}
		resp[i] = dto.InvoiceResponse{
			ID:              inv.ID.String(),
			CustomerID:      inv.CustomerID.String(),
			PeriodStart:     inv.PeriodStart,
			PeriodEnd:       inv.PeriodEnd,
			MonthlyCharge:   inv.MonthlyCharge.String(),
			CumulativeTotal: inv.CumulativeTotal.String(),
			IssuedAt:        inv.IssuedAt,
			Status:          inv.Status.String(),
			AmountOwed:      amountOwed.String(),
		}
	}
	h.Success(c, resp)
}

// EnrollAutoPay activates (or re-activates) auto-pay for the customer
func (h *BillingHandler) EnrollAutoPay(c *gin.Context) {
	customerID, ok := h.bindCustomerID(c)
	if !ok {
		return
	}

	enrollment, err := h.autopay.Enroll(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, enrollment)
}

// RecordAutoPayOutcome reports a scheduled gateway charge result
func (h *BillingHandler) RecordAutoPayOutcome(c *gin.Context) {
	customerID, ok := h.bindCustomerID(c)
	if !ok {
		return
	}

	var req dto.AutoPayOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount := decimal.Zero
	if *req.Succeeded {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil {
			h.Error(c, 400, dto.ErrCodeInvalidAmount, "Amount is not a valid decimal")
			return
		}
		amount = parsed
	}

	result, err := h.autopay.RecordChargeOutcome(
		c.Request.Context(),
		customerID,
		amount,
		req.GatewayReference,
		*req.Succeeded,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// bindCustomerID parses the customer ID path parameter
func (h *BillingHandler) bindCustomerID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return uuid.Nil, false
	}
	return id, true
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appbilling "github.com/aquaflow/backend/internal/application/billing"
	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/interfaces/http/dto"
	"github.com/aquaflow/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// Stub services returning canned results so the handler tests exercise only
// binding, routing and error mapping.

type stubBalanceService struct {
	balance *appbilling.CustomerBalance
	err     error
}

func (s *stubBalanceService) CurrentBalance(_ context.Context, _ uuid.UUID) (*appbilling.CustomerBalance, error) {
	return s.balance, s.err
}

type stubReconService struct {
	result  *appbilling.ReconciliationResult
	partial map[uuid.UUID]decimal.Decimal
	err     error
}

func (s *stubReconService) Reconcile(_ context.Context, _ uuid.UUID) (*appbilling.ReconciliationResult, error) {
	return s.result, s.err
}

func (s *stubReconService) PartialPayments(_ context.Context, _ uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return s.partial, s.err
}

type stubPaymentService struct {
	result  *appbilling.ApplyPaymentResult
	err     error
	lastReq appbilling.ApplyPaymentRequest
}

func (s *stubPaymentService) ApplyPayment(_ context.Context, req appbilling.ApplyPaymentRequest) (*appbilling.ApplyPaymentResult, error) {
	s.lastReq = req
	return s.result, s.err
}

type stubAutoPayService struct {
	enrollment *billing.AutoPayEnrollment
	outcome    *appbilling.AutoPayChargeResult
	err        error
}

func (s *stubAutoPayService) Enroll(_ context.Context, _ uuid.UUID) (*billing.AutoPayEnrollment, error) {
	return s.enrollment, s.err
}

func (s *stubAutoPayService) RecordChargeOutcome(_ context.Context, _ uuid.UUID, _ decimal.Decimal, _ string, _ bool) (*appbilling.AutoPayChargeResult, error) {
	return s.outcome, s.err
}

type stubInvoiceReader struct {
	invoices []billing.Invoice
	err      error
}

func (s *stubInvoiceReader) FindByID(_ context.Context, _ uuid.UUID) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}

func (s *stubInvoiceReader) FindByCustomer(_ context.Context, _ uuid.UUID) ([]billing.Invoice, error) {
	return s.invoices, s.err
}

func (s *stubInvoiceReader) FindLatest(_ context.Context, _ uuid.UUID) (*billing.Invoice, error) {
	return nil, shared.ErrNotFound
}

func (s *stubInvoiceReader) Save(_ context.Context, _ *billing.Invoice) error { return nil }

func (s *stubInvoiceReader) UpdateStatus(_ context.Context, _ uuid.UUID, _ billing.InvoiceStatus) error {
	return nil
}

type billingStubs struct {
	balance  *stubBalanceService
	recon    *stubReconService
	payments *stubPaymentService
	autopay  *stubAutoPayService
	invoices *stubInvoiceReader
}

func newBillingRouter() (*gin.Engine, *billingStubs) {
	stubs := &billingStubs{
		balance:  &stubBalanceService{},
		recon:    &stubReconService{},
		payments: &stubPaymentService{},
		autopay:  &stubAutoPayService{},
		invoices: &stubInvoiceReader{},
	}
	h := NewBillingHandler(stubs.balance, stubs.recon, stubs.payments, stubs.autopay, stubs.invoices)

	router := gin.New()
	group := router.Group("/api/v1")
	h.RegisterRoutes(group)
	return router, stubs
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetBalance(t *testing.T) {
	t.Run("returns the derived balance", func(t *testing.T) {
		router, stubs := newBillingRouter()
		customerID := uuid.New()
		baselineID := uuid.New()
		stubs.balance.balance = &appbilling.CustomerBalance{
			CustomerID:        customerID,
			Outstanding:       decimal.NewFromInt(22000),
			AvailableCredit:   decimal.Zero,
			BaselineInvoiceID: &baselineID,
			ComputedAt:        time.Now(),
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/customers/"+customerID.String()+"/balance", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "22000", data["outstanding"])
		assert.Equal(t, baselineID.String(), data["baseline_invoice_id"])
	})

	t.Run("unknown customer maps to 404", func(t *testing.T) {
		router, stubs := newBillingRouter()
		stubs.balance.err = shared.ErrCustomerNotFound

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/customers/"+uuid.NewString()+"/balance", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeCustomerNotFound, resp.Error.Code)
	})

	t.Run("malformed customer ID maps to 400", func(t *testing.T) {
		router, _ := newBillingRouter()

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/customers/not-a-uuid/balance", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestApplyPaymentEndpoint(t *testing.T) {
	postPayment := func(router *gin.Engine, customerID string, body map[string]interface{}) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/customers/"+customerID+"/payments", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("applies a payment and returns 201", func(t *testing.T) {
		router, stubs := newBillingRouter()
		customerID := uuid.New()
		stubs.payments.result = &appbilling.ApplyPaymentResult{
			Reconciliation: &appbilling.ReconciliationResult{
				CustomerID: customerID,
				NewBalance: decimal.NewFromInt(10000),
			},
		}

		w := postPayment(router, customerID.String(), map[string]interface{}{
			"amount":   "12000",
			"source":   "MANUAL",
			"metadata": map[string]string{"teller": "front-desk"},
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, customerID, stubs.payments.lastReq.CustomerID)
		assert.True(t, stubs.payments.lastReq.Amount.Equal(decimal.NewFromInt(12000)))
		assert.Equal(t, billing.PaymentSourceManual, stubs.payments.lastReq.Source)
	})

	t.Run("rejects a non-decimal amount", func(t *testing.T) {
		router, _ := newBillingRouter()

		w := postPayment(router, uuid.NewString(), map[string]interface{}{
			"amount": "twelve",
			"source": "MANUAL",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInvalidAmount, resp.Error.Code)
	})

	t.Run("rejects an unknown source at binding", func(t *testing.T) {
		router, _ := newBillingRouter()

		w := postPayment(router, uuid.NewString(), map[string]interface{}{
			"amount": "12000",
			"source": "CARRIER_PIGEON",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative amount surfaces the domain error", func(t *testing.T) {
		router, stubs := newBillingRouter()
		stubs.payments.err = shared.ErrInvalidAmount

		w := postPayment(router, uuid.NewString(), map[string]interface{}{
			"amount": "-100",
			"source": "MANUAL",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInvalidAmount, resp.Error.Code)
	})

	t.Run("duplicate gateway reference maps to 409", func(t *testing.T) {
		router, stubs := newBillingRouter()
		stubs.payments.err = shared.NewDomainError("ALREADY_EXISTS", "Payment already recorded")

		w := postPayment(router, uuid.NewString(), map[string]interface{}{
			"amount":            "12000",
			"source":            "ONLINE_GATEWAY",
			"gateway_reference": "TBK-001",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("concurrency conflict maps to 409", func(t *testing.T) {
		router, stubs := newBillingRouter()
		stubs.payments.err = shared.ErrConcurrencyConflict

		w := postPayment(router, uuid.NewString(), map[string]interface{}{
			"amount": "12000",
			"source": "MANUAL",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestReconcileEndpoint(t *testing.T) {
	t.Run("returns the reconciliation summary", func(t *testing.T) {
		router, stubs := newBillingRouter()
		customerID := uuid.New()
		stubs.recon.result = &appbilling.ReconciliationResult{
			CustomerID:   customerID,
			UpdatedCount: 2,
			NewBalance:   decimal.NewFromInt(12000),
			Changes:      []appbilling.StatusChange{},
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/customers/"+customerID.String()+"/reconcile", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(2), data["updated_count"])
	})
}

func TestListInvoicesEndpoint(t *testing.T) {
	t.Run("merges amount owed into each invoice", func(t *testing.T) {
		router, stubs := newBillingRouter()
		customerID := uuid.New()

		invoice := billing.Invoice{
			BaseAggregateRoot: shared.NewBaseAggregateRoot(),
			CustomerID:        customerID,
			PeriodStart:       time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:         time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
			MonthlyCharge:     decimal.NewFromInt(12000),
			CumulativeTotal:   decimal.NewFromInt(12000),
			IssuedAt:          time.Date(2026, time.August, 26, 0, 0, 0, 0, time.UTC),
			Status:            billing.InvoiceStatusPending,
		}
		stubs.invoices.invoices = []billing.Invoice{invoice}
		stubs.recon.partial = map[uuid.UUID]decimal.Decimal{
			invoice.ID: decimal.NewFromInt(7000),
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/customers/"+customerID.String()+"/invoices", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		list := resp.Data.([]interface{})
		require.Len(t, list, 1)

		entry := list[0].(map[string]interface{})
		assert.Equal(t, invoice.ID.String(), entry["id"])
		assert.Equal(t, "7000", entry["amount_owed"])
		assert.Equal(t, "PENDING", entry["status"])
	})
}

func TestAutoPayEndpoints(t *testing.T) {
	t.Run("enrolls a customer", func(t *testing.T) {
		router, stubs := newBillingRouter()
		customerID := uuid.New()
		enrollment, err := billing.NewAutoPayEnrollment(customerID)
		require.NoError(t, err)
		stubs.autopay.enrollment = enrollment

		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/customers/"+customerID.String()+"/autopay", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("records a failed charge outcome", func(t *testing.T) {
		router, stubs := newBillingRouter()
		customerID := uuid.New()
		enrollment, err := billing.NewAutoPayEnrollment(customerID)
		require.NoError(t, err)
		_, err = enrollment.RecordFailure()
		require.NoError(t, err)
		stubs.autopay.outcome = &appbilling.AutoPayChargeResult{Enrollment: enrollment}

		payload, _ := json.Marshal(map[string]interface{}{"succeeded": false})
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/customers/"+customerID.String()+"/autopay/outcomes", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("outcome without the succeeded flag is rejected", func(t *testing.T) {
		router, _ := newBillingRouter()

		payload, _ := json.Marshal(map[string]interface{}{"amount": "12000"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/customers/"+uuid.NewString()+"/autopay/outcomes", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disabled enrollment maps to 422", func(t *testing.T) {
		router, stubs := newBillingRouter()
		stubs.autopay.err = shared.NewDomainError("INVALID_STATE", "Auto-pay enrollment is disabled")

		payload, _ := json.Marshal(map[string]interface{}{"succeeded": false})
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/customers/"+uuid.NewString()+"/autopay/outcomes", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

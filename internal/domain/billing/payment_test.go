package billing

import (
	"testing"

	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompletedPayment(t *testing.T) {
	customerID := uuid.New()

	t.Run("creates a completed payment", func(t *testing.T) {
		p, err := NewCompletedPayment(customerID, valueobject.NewMoneyCLPFromInt(12000),
			PaymentSourceManual, PaymentMetadata{"teller": "front-desk"})
		require.NoError(t, err)

		assert.Equal(t, customerID, p.CustomerID)
		assert.True(t, p.Amount.Equal(decimal.NewFromInt(12000)))
		assert.Equal(t, PaymentStatusCompleted, p.Status)
		assert.True(t, p.IsCompleted())
		assert.False(t, p.PaidAt.IsZero())
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewCompletedPayment(customerID, valueobject.ZeroCLP(), PaymentSourceManual, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := NewCompletedPayment(customerID,
			valueobject.NewMoneyCLP(decimal.NewFromInt(-500)), PaymentSourceManual, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		_, err := NewCompletedPayment(customerID, valueobject.NewMoneyCLPFromInt(100), "CARRIER_PIGEON", nil)
		assert.Error(t, err)
	})

	t.Run("rejects nil customer", func(t *testing.T) {
		_, err := NewCompletedPayment(uuid.Nil, valueobject.NewMoneyCLPFromInt(100), PaymentSourceManual, nil)
		assert.ErrorIs(t, err, shared.ErrCustomerNotFound)
	})
}

func TestPaymentCreditNote(t *testing.T) {
	p, err := NewCompletedPayment(uuid.New(), valueobject.NewMoneyCLPFromInt(15000), PaymentSourceOnlineGateway, nil)
	require.NoError(t, err)

	amountBefore := p.Amount
	p.AttachCreditNote("Overpayment of 3000 CLP retained as credit toward future invoices")

	assert.NotEmpty(t, p.CreditNote)
	assert.True(t, p.Amount.Equal(amountBefore), "credit note must not change the amount")
}

func TestPaymentMetadataScanValue(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := PaymentMetadata{"channel": "webpay", "receipt": "R-8841"}

		v, err := in.Value()
		require.NoError(t, err)

		var out PaymentMetadata
		require.NoError(t, out.Scan(v))
		assert.Equal(t, in, out)
	})

	t.Run("nil metadata stores empty object", func(t *testing.T) {
		var m PaymentMetadata
		v, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, "{}", v)
	})

	t.Run("scans nil as empty map", func(t *testing.T) {
		var m PaymentMetadata
		require.NoError(t, m.Scan(nil))
		assert.NotNil(t, m)
		assert.Empty(t, m)
	})

	t.Run("scans string input", func(t *testing.T) {
		var m PaymentMetadata
		require.NoError(t, m.Scan(`{"k":"v"}`))
		assert.Equal(t, "v", m["k"])
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		var m PaymentMetadata
		assert.Error(t, m.Scan(42))
	})
}

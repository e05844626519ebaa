package billing

import (
	"testing"
	"time"

	"github.com/aquaflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoice(t *testing.T) {
	customerID := uuid.New()
	periodStart := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	t.Run("snapshots cumulative total at issuance", func(t *testing.T) {
		inv, err := NewInvoice(customerID, periodStart, periodEnd,
			valueobject.NewMoneyCLPFromInt(12000),
			valueobject.NewMoneyCLPFromInt(8000),
		)
		require.NoError(t, err)

		assert.Equal(t, customerID, inv.CustomerID)
		assert.True(t, inv.MonthlyCharge.Equal(decimal.NewFromInt(12000)))
		assert.True(t, inv.CumulativeTotal.Equal(decimal.NewFromInt(20000)))
		assert.Equal(t, InvoiceStatusPending, inv.Status)
		assert.False(t, inv.IssuedAt.IsZero())
	})

	t.Run("zero prior balance keeps cumulative equal to charge", func(t *testing.T) {
		inv, err := NewInvoice(customerID, periodStart, periodEnd,
			valueobject.NewMoneyCLPFromInt(12000),
			valueobject.ZeroCLP(),
		)
		require.NoError(t, err)
		assert.True(t, inv.CumulativeTotal.Equal(inv.MonthlyCharge))
	})

	t.Run("rejects nil customer", func(t *testing.T) {
		_, err := NewInvoice(uuid.Nil, periodStart, periodEnd,
			valueobject.NewMoneyCLPFromInt(12000), valueobject.ZeroCLP())
		assert.Error(t, err)
	})

	t.Run("rejects inverted period", func(t *testing.T) {
		_, err := NewInvoice(customerID, periodEnd, periodStart,
			valueobject.NewMoneyCLPFromInt(12000), valueobject.ZeroCLP())
		assert.Error(t, err)
	})

	t.Run("rejects negative charge", func(t *testing.T) {
		_, err := NewInvoice(customerID, periodStart, periodEnd,
			valueobject.NewMoneyCLP(decimal.NewFromInt(-1)), valueobject.ZeroCLP())
		assert.Error(t, err)
	})
}

func TestInvoiceTransitionStatus(t *testing.T) {
	inv := testInvoice(0, 12000)

	t.Run("transitions to paid", func(t *testing.T) {
		version := inv.Version
		require.NoError(t, inv.TransitionStatus(InvoiceStatusPaid))
		assert.True(t, inv.IsPaid())
		assert.Equal(t, version+1, inv.Version)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		version := inv.Version
		require.NoError(t, inv.TransitionStatus(InvoiceStatusPaid))
		assert.Equal(t, version, inv.Version)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		assert.Error(t, inv.TransitionStatus("CANCELLED"))
	})
}

func TestInvoiceCovers(t *testing.T) {
	inv := testInvoice(0, 12000)

	assert.True(t, inv.Covers(inv.PeriodStart))
	assert.True(t, inv.Covers(inv.PeriodStart.AddDate(0, 0, 15)))
	assert.False(t, inv.Covers(inv.PeriodEnd))
	assert.False(t, inv.Covers(inv.PeriodStart.Add(-time.Second)))
}

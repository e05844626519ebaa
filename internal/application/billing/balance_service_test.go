package billing

import (
	"context"
	"testing"
	"time"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBalanceService(f *ledgerFixture) *BalanceService {
	return NewBalanceService(f.customers, f.invoices, f.payments)
}

func TestCurrentBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("customer with no invoices owes nothing", func(t *testing.T) {
		f := newLedgerFixture()
		svc := newBalanceService(f)

		balance, err := svc.CurrentBalance(ctx, f.customerID)
		require.NoError(t, err)

		assert.True(t, balance.Outstanding.IsZero())
		assert.True(t, balance.AvailableCredit.IsZero())
		assert.Nil(t, balance.BaselineInvoiceID)
	})

	t.Run("unknown customer", func(t *testing.T) {
		f := newLedgerFixture()
		svc := newBalanceService(f)

		_, err := svc.CurrentBalance(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrCustomerNotFound)
	})

	t.Run("baseline minus payments after issuance", func(t *testing.T) {
		f := newLedgerFixture()
		latest := f.addInvoice(0, 12000, 30000, billing.InvoiceStatusPending)
		f.addPayment(10000, latest.IssuedAt.Add(24*time.Hour))

		balance, err := newBalanceService(f).CurrentBalance(ctx, f.customerID)
		require.NoError(t, err)

		assert.True(t, balance.Outstanding.Equal(decimal.NewFromInt(20000)))
		assert.True(t, balance.AvailableCredit.IsZero())
		require.NotNil(t, balance.BaselineInvoiceID)
		assert.Equal(t, latest.ID, *balance.BaselineInvoiceID)
	})

	t.Run("payments before issuance are already in the baseline", func(t *testing.T) {
		f := newLedgerFixture()
		latest := f.addInvoice(0, 12000, 12000, billing.InvoiceStatusPending)
		f.addPayment(5000, latest.IssuedAt.Add(-48*time.Hour))

		balance, err := newBalanceService(f).CurrentBalance(ctx, f.customerID)
		require.NoError(t, err)
		assert.True(t, balance.Outstanding.Equal(decimal.NewFromInt(12000)))
	})

	t.Run("overpayment surfaces as credit, not negative debt", func(t *testing.T) {
		f := newLedgerFixture()
		latest := f.addInvoice(0, 12000, 12000, billing.InvoiceStatusPending)
		f.addPayment(15000, latest.IssuedAt.Add(time.Hour))

		balance, err := newBalanceService(f).CurrentBalance(ctx, f.customerID)
		require.NoError(t, err)

		assert.True(t, balance.Outstanding.IsZero())
		assert.True(t, balance.AvailableCredit.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("baseline comes from the newest invoice only", func(t *testing.T) {
		f := newLedgerFixture()
		f.addInvoice(2, 8000, 8000, billing.InvoiceStatusPending)
		f.addInvoice(1, 10000, 18000, billing.InvoiceStatusPending)
		latest := f.addInvoice(0, 12000, 30000, billing.InvoiceStatusPending)

		balance, err := newBalanceService(f).CurrentBalance(ctx, f.customerID)
		require.NoError(t, err)

		require.NotNil(t, balance.BaselineInvoiceID)
		assert.Equal(t, latest.ID, *balance.BaselineInvoiceID)
		assert.True(t, balance.Outstanding.Equal(decimal.NewFromInt(30000)))
	})

	t.Run("reversed payments do not reduce the balance", func(t *testing.T) {
		f := newLedgerFixture()
		latest := f.addInvoice(0, 12000, 12000, billing.InvoiceStatusPending)
		p := f.addPayment(12000, latest.IssuedAt.Add(time.Hour))
		for _, stored := range f.payments.payments {
			if stored.ID == p.ID {
				stored.Status = billing.PaymentStatusReversed
			}
		}

		balance, err := newBalanceService(f).CurrentBalance(ctx, f.customerID)
		require.NoError(t, err)
		assert.True(t, balance.Outstanding.Equal(decimal.NewFromInt(12000)))
	})
}

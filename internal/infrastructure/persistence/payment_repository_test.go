package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/aquaflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockPaymentRepository(t *testing.T) (*GormPaymentRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockDB(t)
	return NewGormPaymentRepository(gormDB), mock, mockDB
}

func paymentRows(id, customerID uuid.UUID, amount int64, paidAt time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at",
		"customer_id", "amount", "paid_at", "status", "source",
		"gateway_reference", "credit_note", "metadata",
	}).AddRow(
		id, now, now,
		customerID, decimal.NewFromInt(amount), paidAt, "COMPLETED", "MANUAL",
		nil, "", []byte(`{}`),
	)
}

func TestGormPaymentRepository_FindByCustomer(t *testing.T) {
	t.Run("returns payments most recent first", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		customerID := uuid.New()
		paymentID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE customer_id = \$1 ORDER BY paid_at DESC`).
			WithArgs(customerID).
			WillReturnRows(paymentRows(paymentID, customerID, 12000, time.Now()))

		payments, err := repo.FindByCustomer(context.Background(), customerID)

		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, paymentID, payments[0].ID)
		assert.True(t, payments[0].Amount.Equal(decimal.NewFromInt(12000)))
		assert.Equal(t, billing.PaymentSourceManual, payments[0].Source)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_FindByGatewayReference(t *testing.T) {
	t.Run("finds payment by reference", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE gateway_reference = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("TBK-001", 1).
			WillReturnRows(paymentRows(paymentID, uuid.New(), 6000, time.Now()))

		payment, err := repo.FindByGatewayReference(context.Background(), "TBK-001")

		require.NoError(t, err)
		assert.Equal(t, paymentID, payment.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown reference maps to ErrNotFound", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE gateway_reference = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("TBK-404", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		payment, err := repo.FindByGatewayReference(context.Background(), "TBK-404")

		assert.Nil(t, payment)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_SumCompletedAfter(t *testing.T) {
	t.Run("sums only completed payments after the cutoff", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		customerID := uuid.New()
		after := time.Date(2026, time.July, 26, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) as total FROM "payments" WHERE customer_id = \$1 AND status = \$2 AND paid_at > \$3`).
			WithArgs(customerID, "COMPLETED", after).
			WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(decimal.NewFromInt(18000)))

		total, err := repo.SumCompletedAfter(context.Background(), customerID, after)

		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(18000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty ledger sums to zero via COALESCE", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		customerID := uuid.New()
		after := time.Now()

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) as total FROM "payments" WHERE customer_id = \$1 AND status = \$2 AND paid_at > \$3`).
			WithArgs(customerID, "COMPLETED", after).
			WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(decimal.Zero))

		total, err := repo.SumCompletedAfter(context.Background(), customerID, after)

		require.NoError(t, err)
		assert.True(t, total.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_Insert(t *testing.T) {
	t.Run("inserts a completed payment", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		payment, err := billing.NewCompletedPayment(uuid.New(),
			valueobject.NewMoneyCLPFromInt(12000), billing.PaymentSourceManual, nil)
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO "payments"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Insert(context.Background(), payment))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate key maps to ErrAlreadyExists", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		payment, err := billing.NewCompletedPayment(uuid.New(),
			valueobject.NewMoneyCLPFromInt(12000), billing.PaymentSourceOnlineGateway, nil)
		require.NoError(t, err)
		payment.WithGatewayReference("TBK-001")

		mock.ExpectExec(`INSERT INTO "payments"`).
			WillReturnError(gorm.ErrDuplicatedKey)

		assert.ErrorIs(t, repo.Insert(context.Background(), payment), shared.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentRepository_SetCreditNote(t *testing.T) {
	t.Run("attaches the note", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "payments" SET "credit_note"=\$1.* WHERE id = \$\d`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SetCreditNote(context.Background(), uuid.New(), "Overpayment of 3000 CLP retained as credit")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing payment returns ErrNotFound", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "payments" SET "credit_note"=\$1.* WHERE id = \$\d`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SetCreditNote(context.Background(), uuid.New(), "note")

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

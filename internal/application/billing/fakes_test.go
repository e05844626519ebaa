package billing

import (
	"context"
	"sort"
	"time"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/aquaflow/backend/internal/domain/customer"
	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory fakes for the ledger repositories. The transaction manager
// snapshots both ledgers before running the unit of work and restores them on
// error, mirroring the rollback the real implementation gets from Postgres.

type fakeInvoiceRepo struct {
	invoices        map[uuid.UUID]*billing.Invoice
	updateStatusErr error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*billing.Invoice)}
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.Invoice, error) {
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].PeriodStart.Equal(out[b].PeriodStart) {
			return out[a].IssuedAt.After(out[b].IssuedAt)
		}
		return out[a].PeriodStart.After(out[b].PeriodStart)
	})
	return out, nil
}

func (r *fakeInvoiceRepo) FindLatest(ctx context.Context, customerID uuid.UUID) (*billing.Invoice, error) {
	all, err := r.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, shared.ErrNotFound
	}
	latest := all[0]
	return &latest, nil
}

func (r *fakeInvoiceRepo) Save(_ context.Context, invoice *billing.Invoice) error {
	cp := *invoice
	r.invoices[invoice.ID] = &cp
	return nil
}

func (r *fakeInvoiceRepo) UpdateStatus(_ context.Context, id uuid.UUID, status billing.InvoiceStatus) error {
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	inv, ok := r.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (r *fakeInvoiceRepo) snapshot() map[uuid.UUID]billing.Invoice {
	snap := make(map[uuid.UUID]billing.Invoice, len(r.invoices))
	for id, inv := range r.invoices {
		snap[id] = *inv
	}
	return snap
}

func (r *fakeInvoiceRepo) restore(snap map[uuid.UUID]billing.Invoice) {
	r.invoices = make(map[uuid.UUID]*billing.Invoice, len(snap))
	for id, inv := range snap {
		cp := inv
		r.invoices[id] = &cp
	}
}

type fakePaymentRepo struct {
	payments  []*billing.Payment
	insertErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{}
}

func (r *fakePaymentRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range r.payments {
		if p.CustomerID == customerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) FindByGatewayReference(_ context.Context, ref string) (*billing.Payment, error) {
	for _, p := range r.payments {
		if p.GatewayReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakePaymentRepo) SumCompletedAfter(_ context.Context, customerID uuid.UUID, after time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.payments {
		if p.CustomerID == customerID && p.Status == billing.PaymentStatusCompleted && p.PaidAt.After(after) {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *fakePaymentRepo) Insert(_ context.Context, payment *billing.Payment) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	cp := *payment
	r.payments = append(r.payments, &cp)
	return nil
}

func (r *fakePaymentRepo) SetCreditNote(_ context.Context, id uuid.UUID, note string) error {
	for _, p := range r.payments {
		if p.ID == id {
			p.CreditNote = note
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *fakePaymentRepo) snapshot() []billing.Payment {
	snap := make([]billing.Payment, len(r.payments))
	for i, p := range r.payments {
		snap[i] = *p
	}
	return snap
}

func (r *fakePaymentRepo) restore(snap []billing.Payment) {
	r.payments = make([]*billing.Payment, len(snap))
	for i := range snap {
		cp := snap[i]
		r.payments[i] = &cp
	}
}

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*customer.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*customer.Customer)}
}

func (r *fakeCustomerRepo) add() uuid.UUID {
	c, _ := customer.NewCustomer("SVC-0001", "Test Customer", "R1", "Calle Falsa 123")
	r.customers[c.ID] = c
	return c.ID
}

func (r *fakeCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*customer.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeCustomerRepo) FindByServiceNumber(_ context.Context, serviceNumber string) (*customer.Customer, error) {
	for _, c := range r.customers {
		if c.ServiceNumber == serviceNumber {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCustomerRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.customers[id]
	return ok, nil
}

func (r *fakeCustomerRepo) Save(_ context.Context, c *customer.Customer) error {
	r.customers[c.ID] = c
	return nil
}

type fakeAutoPayRepo struct {
	enrollments map[uuid.UUID]*billing.AutoPayEnrollment
}

func newFakeAutoPayRepo() *fakeAutoPayRepo {
	return &fakeAutoPayRepo{enrollments: make(map[uuid.UUID]*billing.AutoPayEnrollment)}
}

func (r *fakeAutoPayRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) (*billing.AutoPayEnrollment, error) {
	e, ok := r.enrollments[customerID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return e, nil
}

func (r *fakeAutoPayRepo) Save(_ context.Context, e *billing.AutoPayEnrollment) error {
	r.enrollments[e.CustomerID] = e
	return nil
}

type fakeTxManager struct {
	invoices *fakeInvoiceRepo
	payments *fakePaymentRepo
	observe  func(ctx context.Context)
}

func (m *fakeTxManager) WithinCustomerTransaction(
	ctx context.Context,
	_ uuid.UUID,
	fn func(ctx context.Context, tc billing.TransactionContext) error,
) error {
	if m.observe != nil {
		m.observe(ctx)
	}
	invSnap := m.invoices.snapshot()
	paySnap := m.payments.snapshot()

	if err := fn(ctx, &fakeTxContext{invoices: m.invoices, payments: m.payments}); err != nil {
		m.invoices.restore(invSnap)
		m.payments.restore(paySnap)
		return err
	}
	return nil
}

type fakeTxContext struct {
	invoices *fakeInvoiceRepo
	payments *fakePaymentRepo
}

func (c *fakeTxContext) Invoices() billing.InvoiceRepository { return c.invoices }
func (c *fakeTxContext) Payments() billing.PaymentRepository { return c.payments }

// ledgerFixture bundles the fakes behind a single test ledger
type ledgerFixture struct {
	customers  *fakeCustomerRepo
	invoices   *fakeInvoiceRepo
	payments   *fakePaymentRepo
	autopay    *fakeAutoPayRepo
	tx         *fakeTxManager
	customerID uuid.UUID
}

func newLedgerFixture() *ledgerFixture {
	customers := newFakeCustomerRepo()
	invoices := newFakeInvoiceRepo()
	payments := newFakePaymentRepo()
	return &ledgerFixture{
		customers:  customers,
		invoices:   invoices,
		payments:   payments,
		autopay:    newFakeAutoPayRepo(),
		tx:         &fakeTxManager{invoices: invoices, payments: payments},
		customerID: customers.add(),
	}
}

// addInvoice issues an invoice monthsAgo with the given charge and cumulative
// total, already carrying the given status.
func (f *ledgerFixture) addInvoice(monthsAgo int, charge, cumulative int64, status billing.InvoiceStatus) *billing.Invoice {
	start := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -monthsAgo, 0)
	inv := &billing.Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        f.customerID,
		PeriodStart:       start,
		PeriodEnd:         start.AddDate(0, 1, 0),
		MonthlyCharge:     decimal.NewFromInt(charge),
		CumulativeTotal:   decimal.NewFromInt(cumulative),
		IssuedAt:          start.AddDate(0, 0, 25),
		Status:            status,
	}
	_ = f.invoices.Save(context.Background(), inv)
	return inv
}

// addPayment records a completed payment paid the given number of days after
// the most recent invoice issuance date.
func (f *ledgerFixture) addPayment(amount int64, paidAt time.Time) *billing.Payment {
	p := &billing.Payment{
		BaseEntity: shared.NewBaseEntity(),
		CustomerID: f.customerID,
		Amount:     decimal.NewFromInt(amount),
		PaidAt:     paidAt,
		Status:     billing.PaymentStatusCompleted,
		Source:     billing.PaymentSourceManual,
	}
	_ = f.payments.Insert(context.Background(), p)
	return p
}

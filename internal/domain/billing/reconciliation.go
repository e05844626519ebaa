package billing

import (
	"sort"
	"time"

	"github.com/aquaflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettleBaseline derives the customer's outstanding balance and available credit
// from the baseline (latest invoice's cumulative total) and the sum of completed
// payments received strictly after that invoice was issued.
//
// The baseline already encodes the running balance as of issuance, so payments
// after it are the only delta; recomputing from individual invoices would
// double-count the carried-forward amounts. Overpayment surfaces as credit,
// never as a negative balance.
func SettleBaseline(baseline, paymentsAfter decimal.Decimal) (outstanding, credit decimal.Decimal) {
	diff := baseline.Sub(paymentsAfter)
	if diff.IsNegative() {
		return decimal.Zero, diff.Neg()
	}
	return diff, decimal.Zero
}

// DebtAllocation records the share of the customer's outstanding balance carried
// by a single invoice after a reverse-FIFO walk.
type DebtAllocation struct {
	InvoiceID     uuid.UUID
	PeriodStart   time.Time
	MonthlyCharge decimal.Decimal
	AmountOwed    decimal.Decimal
	Status        InvoiceStatus
}

// AllocationSummary is the result of allocating the outstanding balance across
// a customer's invoice history.
type AllocationSummary struct {
	Allocations  []DebtAllocation
	PaidCount    int
	PendingCount int
	// Unallocated is outstanding debt not covered by any invoice's monthly
	// charge. Zero for any ledger where cumulative totals were maintained
	// correctly; nonzero indicates drift worth surfacing to the operator.
	Unallocated decimal.Decimal
}

// AllocateOutstanding walks the customer's invoices newest-first and assigns each
// one the portion of the outstanding balance it still carries.
//
// Payments in this domain satisfy the most recent debt first: the last bill is
// what the customer "owes", and older invoices are considered settled once enough
// payment has flowed in, regardless of which invoice a payment nominally
// targeted. That removes the need for explicit per-invoice payment allocation.
//
// An invoice owes min(remainingDebt, monthlyCharge); its status follows directly
// from that amount (owes zero => PAID, owes anything => PENDING), which keeps the
// status walk and the partial-debt figures consistent by construction. All
// arithmetic is exact decimal, no epsilon comparisons.
func AllocateOutstanding(invoices []Invoice, outstanding decimal.Decimal) (*AllocationSummary, error) {
	if outstanding.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Outstanding balance cannot be negative")
	}

	ordered := make([]Invoice, len(invoices))
	copy(ordered, invoices)
	sortNewestFirst(ordered)

	summary := &AllocationSummary{
		Allocations: make([]DebtAllocation, 0, len(ordered)),
	}

	remaining := outstanding
	for _, inv := range ordered {
		owed := remaining
		if inv.MonthlyCharge.LessThan(remaining) {
			owed = inv.MonthlyCharge
		}
		remaining = remaining.Sub(owed)

		status := InvoiceStatusPaid
		if owed.IsPositive() {
			status = InvoiceStatusPending
			summary.PendingCount++
		} else {
			summary.PaidCount++
		}

		summary.Allocations = append(summary.Allocations, DebtAllocation{
			InvoiceID:     inv.ID,
			PeriodStart:   inv.PeriodStart,
			MonthlyCharge: inv.MonthlyCharge,
			AmountOwed:    owed,
			Status:        status,
		})
	}

	summary.Unallocated = remaining
	return summary, nil
}

// PartialPaymentMap returns, per invoice, the amount still owed of its monthly
// charge ("this invoice owes $X of its $Y charge"). Amounts are consistent with
// the statuses AllocateOutstanding assigns: zero owed means PAID, positive owed
// means PENDING.
func PartialPaymentMap(invoices []Invoice, outstanding decimal.Decimal) (map[uuid.UUID]decimal.Decimal, error) {
	summary, err := AllocateOutstanding(invoices, outstanding)
	if err != nil {
		return nil, err
	}

	owed := make(map[uuid.UUID]decimal.Decimal, len(summary.Allocations))
	for _, alloc := range summary.Allocations {
		owed[alloc.InvoiceID] = alloc.AmountOwed
	}
	return owed, nil
}

// sortNewestFirst orders invoices by period start descending. Re-issued
// invoices for the same period tie-break on issuance time so the correction
// supersedes the original.
func sortNewestFirst(invoices []Invoice) {
	sort.SliceStable(invoices, func(a, b int) bool {
		if invoices[a].PeriodStart.Equal(invoices[b].PeriodStart) {
			return invoices[a].IssuedAt.After(invoices[b].IssuedAt)
		}
		return invoices[a].PeriodStart.After(invoices[b].PeriodStart)
	})
}

package models

import (
	"time"

	"github.com/aquaflow/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the GORM model for invoices.
// CumulativeTotal is a snapshot taken at issuance and never recomputed.
type InvoiceModel struct {
	AggregateModel
	CustomerID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_invoices_customer_period,priority:1"`
	PeriodStart     time.Time       `gorm:"not null;index:idx_invoices_customer_period,priority:2,sort:desc"`
	PeriodEnd       time.Time       `gorm:"not null"`
	MonthlyCharge   decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CumulativeTotal decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	IssuedAt        time.Time       `gorm:"not null"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
}

// TableName specifies the table name for InvoiceModel
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts InvoiceModel to domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		CustomerID:        m.CustomerID,
		PeriodStart:       m.PeriodStart,
		PeriodEnd:         m.PeriodEnd,
		MonthlyCharge:     m.MonthlyCharge,
		CumulativeTotal:   m.CumulativeTotal,
		IssuedAt:          m.IssuedAt,
		Status:            billing.InvoiceStatus(m.Status),
	}
}

// InvoiceModelFromDomain converts domain Invoice to InvoiceModel
func InvoiceModelFromDomain(i *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		CustomerID:      i.CustomerID,
		PeriodStart:     i.PeriodStart,
		PeriodEnd:       i.PeriodEnd,
		MonthlyCharge:   i.MonthlyCharge,
		CumulativeTotal: i.CumulativeTotal,
		IssuedAt:        i.IssuedAt,
		Status:          string(i.Status),
	}
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	return m
}

// PaymentModel is the GORM model for the append-only payment ledger.
// GatewayReference carries a partial unique index so gateway callbacks
// cannot insert the same external charge twice.
type PaymentModel struct {
	BaseModel
	CustomerID       uuid.UUID               `gorm:"type:uuid;not null;index:idx_payments_customer_paid_at,priority:1"`
	Amount           decimal.Decimal         `gorm:"type:numeric(14,2);not null"`
	PaidAt           time.Time               `gorm:"not null;index:idx_payments_customer_paid_at,priority:2"`
	Status           string                  `gorm:"type:varchar(20);not null"`
	Source           string                  `gorm:"type:varchar(20);not null"`
	GatewayReference *string                 `gorm:"type:varchar(100);uniqueIndex:idx_payments_gateway_ref,where:gateway_reference IS NOT NULL"`
	CreditNote       string                  `gorm:"type:text"`
	Metadata         billing.PaymentMetadata `gorm:"type:jsonb"`
}

// TableName specifies the table name for PaymentModel
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts PaymentModel to domain Payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	ref := ""
	if m.GatewayReference != nil {
		ref = *m.GatewayReference
	}
	return &billing.Payment{
		BaseEntity:       m.BaseModel.ToDomain(),
		CustomerID:       m.CustomerID,
		Amount:           m.Amount,
		PaidAt:           m.PaidAt,
		Status:           billing.PaymentStatus(m.Status),
		Source:           billing.PaymentSource(m.Source),
		GatewayReference: ref,
		CreditNote:       m.CreditNote,
		Metadata:         m.Metadata,
	}
}

// PaymentModelFromDomain converts domain Payment to PaymentModel
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		CustomerID: p.CustomerID,
		Amount:     p.Amount,
		PaidAt:     p.PaidAt,
		Status:     string(p.Status),
		Source:     string(p.Source),
		CreditNote: p.CreditNote,
		Metadata:   p.Metadata,
	}
	if p.GatewayReference != "" {
		ref := p.GatewayReference
		m.GatewayReference = &ref
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// AutoPayModel is the GORM model for auto-pay enrollments
type AutoPayModel struct {
	AggregateModel
	CustomerID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	Status              string     `gorm:"type:varchar(20);not null"`
	ConsecutiveFailures int        `gorm:"not null;default:0"`
	LastAttemptAt       *time.Time `gorm:""`
	DisabledAt          *time.Time `gorm:""`
}

// TableName specifies the table name for AutoPayModel
func (AutoPayModel) TableName() string {
	return "autopay_enrollments"
}

// ToDomain converts AutoPayModel to domain AutoPayEnrollment
func (m *AutoPayModel) ToDomain() *billing.AutoPayEnrollment {
	return &billing.AutoPayEnrollment{
		BaseAggregateRoot:   m.ToDomainAggregateRoot(),
		CustomerID:          m.CustomerID,
		Status:              billing.AutoPayStatus(m.Status),
		ConsecutiveFailures: m.ConsecutiveFailures,
		LastAttemptAt:       m.LastAttemptAt,
		DisabledAt:          m.DisabledAt,
	}
}

// AutoPayModelFromDomain converts domain AutoPayEnrollment to AutoPayModel
func AutoPayModelFromDomain(e *billing.AutoPayEnrollment) *AutoPayModel {
	m := &AutoPayModel{
		CustomerID:          e.CustomerID,
		Status:              string(e.Status),
		ConsecutiveFailures: e.ConsecutiveFailures,
		LastAttemptAt:       e.LastAttemptAt,
		DisabledAt:          e.DisabledAt,
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	return m
}

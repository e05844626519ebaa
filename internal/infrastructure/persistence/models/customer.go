package models

import (
	"github.com/aquaflow/backend/internal/domain/customer"
)

// CustomerModel is the GORM model for water-service customer accounts
type CustomerModel struct {
	AggregateModel
	ServiceNumber string `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name          string `gorm:"type:varchar(200);not null"`
	Route         string `gorm:"type:varchar(20);index"`
	Address       string `gorm:"type:varchar(300)"`
	Phone         string `gorm:"type:varchar(30)"`
	Email         string `gorm:"type:varchar(200)"`
	Status        string `gorm:"type:varchar(20);not null;index"`
}

// TableName specifies the table name for CustomerModel
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts CustomerModel to domain Customer
func (m *CustomerModel) ToDomain() *customer.Customer {
	return &customer.Customer{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ServiceNumber:     m.ServiceNumber,
		Name:              m.Name,
		Route:             m.Route,
		Address:           m.Address,
		Phone:             m.Phone,
		Email:             m.Email,
		Status:            customer.Status(m.Status),
	}
}

// CustomerModelFromDomain converts domain Customer to CustomerModel
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{
		ServiceNumber: c.ServiceNumber,
		Name:          c.Name,
		Route:         c.Route,
		Address:       c.Address,
		Phone:         c.Phone,
		Email:         c.Email,
		Status:        string(c.Status),
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	return m
}

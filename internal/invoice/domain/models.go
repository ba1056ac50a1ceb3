// Package domain contains the invoice ledger model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/pricing"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// CanTransitionTo reports whether the ledger allows moving from s to next. PAID is terminal.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case InvoiceStatusPending:
		return next == InvoiceStatusPaid || next == InvoiceStatusOverdue
	case InvoiceStatusOverdue:
		return next == InvoiceStatusPaid
	case InvoiceStatusPaid:
		return false
	default:
		return false
	}
}

func ParseStatus(raw string) (InvoiceStatus, bool) {
	switch status := InvoiceStatus(raw); status {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue:
		return status, true
	default:
		return "", false
	}
}

// Invoice is a bill issued to a customer. QuoteID is unique when set so an
// accepted quote produces at most one invoice.
type Invoice struct {
	ID               snowflake.ID                          `gorm:"primaryKey" json:"id"`
	InvoiceNumber    string                                `gorm:"type:text;not null;uniqueIndex:ux_invoices_number" json:"invoice_number"`
	QuoteID          *snowflake.ID                         `gorm:"uniqueIndex:ux_invoices_quote" json:"quote_id,omitempty"`
	CustomerID       snowflake.ID                          `gorm:"not null;index" json:"customer_id"`
	Items            datatypes.JSONType[[]pricing.LineItem] `gorm:"not null" json:"items"`
	Subtotal         int64                                 `gorm:"not null" json:"subtotal"`
	DiscountAmount   int64                                 `gorm:"not null" json:"discount_amount"`
	Tax              int64                                 `gorm:"not null" json:"tax"`
	Total            int64                                 `gorm:"not null" json:"total"`
	Status           InvoiceStatus                         `gorm:"type:text;not null;index" json:"status"`
	DueDate          time.Time                             `gorm:"not null;index" json:"due_date"`
	PaidAt           *time.Time                            `json:"paid_at,omitempty"`
	PaymentReference *string                               `gorm:"type:text" json:"payment_reference,omitempty"`
	Version          int64                                 `gorm:"not null" json:"version"`
	CreatedAt        time.Time                             `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                             `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

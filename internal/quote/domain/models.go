// Package domain contains the quote ledger model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/pricing"
	"gorm.io/datatypes"
)

type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "PENDING"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

// CanTransitionTo reports whether the ledger allows moving from s to next.
// Every status other than PENDING is terminal.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	switch s {
	case QuoteStatusPending:
		switch next {
		case QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired:
			return true
		default:
			return false
		}
	case QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired:
		return false
	default:
		return false
	}
}

func ParseStatus(raw string) (QuoteStatus, bool) {
	switch status := QuoteStatus(raw); status {
	case QuoteStatusPending, QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired:
		return status, true
	default:
		return "", false
	}
}

// Quote is a priced offer to a customer. Subtotal, discount amount and total
// are always written together from Items, DiscountPercent and Tax.
type Quote struct {
	ID              snowflake.ID                          `gorm:"primaryKey" json:"id"`
	QuoteNumber     string                                `gorm:"type:text;not null;uniqueIndex:ux_quotes_number" json:"quote_number"`
	CustomerID      snowflake.ID                          `gorm:"not null;index" json:"customer_id"`
	CreatedBy       snowflake.ID                          `gorm:"not null" json:"created_by"`
	Items           datatypes.JSONType[[]pricing.LineItem] `gorm:"not null" json:"items"`
	Subtotal        int64                                 `gorm:"not null" json:"subtotal"`
	DiscountPercent int                                   `gorm:"not null;default:0" json:"discount_percent"`
	DiscountAmount  int64                                 `gorm:"not null;default:0" json:"discount_amount"`
	Tax             int64                                 `gorm:"not null;default:0" json:"tax"`
	Total           int64                                 `gorm:"not null" json:"total"`
	Status          QuoteStatus                           `gorm:"type:text;not null;index" json:"status"`
	ExpiryDate      time.Time                             `gorm:"not null;index" json:"expiry_date"`
	DecidedAt       *time.Time                            `json:"decided_at,omitempty"`
	DecidedBy       *snowflake.ID                         `json:"decided_by,omitempty"`
	Version         int64                                 `gorm:"not null" json:"version"`
	CreatedAt       time.Time                             `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                             `gorm:"not null" json:"updated_at"`
}

func (Quote) TableName() string { return "quotes" }

func (q Quote) Totals() pricing.Totals {
	return pricing.Totals{
		Subtotal:       q.Subtotal,
		DiscountAmount: q.DiscountAmount,
		Tax:            q.Tax,
		Total:          q.Total,
	}
}

// ExpiredAt reports whether the quote can no longer be decided at now.
func (q Quote) ExpiredAt(now time.Time) bool {
	return !now.Before(q.ExpiryDate)
}

// Package domain contains the plan catalog model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const DefaultBillingIntervalDays = 30

// Plan is a sellable subscription tier. Only IsActive changes after creation.
type Plan struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                string       `gorm:"type:text;not null" json:"name"`
	Slug                string       `gorm:"type:text;not null;uniqueIndex:ux_plans_slug" json:"slug"`
	Price               int64        `gorm:"not null" json:"price"`
	TokenAmount         int64        `gorm:"not null" json:"token_amount"`
	BillingIntervalDays int          `gorm:"not null" json:"billing_interval_days"`
	IsActive            bool         `gorm:"not null;index" json:"is_active"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }

// BillingInterval is the length of one subscription period on this plan.
func (p Plan) BillingInterval() time.Duration {
	days := p.BillingIntervalDays
	if days <= 0 {
		days = DefaultBillingIntervalDays
	}
	return time.Duration(days) * 24 * time.Hour
}

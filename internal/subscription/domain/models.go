// Package domain contains the subscription lifecycle model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "PENDING"
	SubscriptionStatusActive  SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired SubscriptionStatus = "EXPIRED"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusPending:
		return next == SubscriptionStatusActive || next == SubscriptionStatusExpired
	case SubscriptionStatusActive:
		return next == SubscriptionStatusExpired
	case SubscriptionStatusExpired:
		return false
	default:
		return false
	}
}

// Subscription binds a customer to a plan for consecutive billing periods.
// At most one subscription per customer is ACTIVE at a time.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	CustomerID         snowflake.ID       `gorm:"not null;index" json:"customer_id"`
	PlanID             snowflake.ID       `gorm:"not null;index" json:"plan_id"`
	Status             SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	CurrentPeriodStart time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `gorm:"not null;index" json:"current_period_end"`
	AutoRenew          bool               `gorm:"not null;default:true" json:"auto_renew"`
	Version            int64              `gorm:"not null" json:"version"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
	ExpiredAt          *time.Time         `json:"expired_at,omitempty"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// ActiveCustomerIndex backs the one-active-subscription-per-customer rule.
const ActiveCustomerIndex = "ux_subscriptions_active_customer"

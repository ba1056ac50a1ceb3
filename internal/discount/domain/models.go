// Package domain contains the discount approval workflow model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// CanTransitionTo reports whether the workflow allows moving from s to next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return next == RequestStatusApproved || next == RequestStatusRejected
	case RequestStatusApproved, RequestStatusRejected:
		return false
	default:
		return false
	}
}

func ParseStatus(raw string) (RequestStatus, bool) {
	switch status := RequestStatus(raw); status {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return status, true
	default:
		return "", false
	}
}

// DiscountRequest asks an admin to approve a discount, optionally for a quote.
// ApprovedBy records whoever decided the request, approving or rejecting.
type DiscountRequest struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	QuoteID         *snowflake.ID `gorm:"index" json:"quote_id,omitempty"`
	RequestedBy     snowflake.ID  `gorm:"not null" json:"requested_by"`
	DiscountPercent int           `gorm:"not null" json:"discount_percent"`
	Justification   string        `gorm:"type:text;not null;default:''" json:"justification"`
	Status          RequestStatus `gorm:"type:text;not null;index" json:"status"`
	ApprovedBy      *snowflake.ID `json:"approved_by,omitempty"`
	Notes           string        `gorm:"type:text;not null;default:''" json:"notes"`
	Version         int64         `gorm:"not null" json:"version"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (DiscountRequest) TableName() string { return "discount_requests" }

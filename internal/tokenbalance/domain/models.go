// Package domain contains the per-subscription token balance ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TokenBalance is the spendable token count of one subscription.
type TokenBalance struct {
	SubscriptionID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"subscription_id"`
	Balance        int64        `gorm:"not null;check:chk_token_balances_non_negative,balance >= 0" json:"balance"`
	Version        int64        `gorm:"not null" json:"version"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (TokenBalance) TableName() string { return "token_balances" }

type EntryReason string

const (
	EntryReasonConsume   EntryReason = "CONSUME"
	EntryReasonReplenish EntryReason = "REPLENISH"
)

// Entry is an append-only record of one balance change.
type Entry struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	Delta          int64        `gorm:"not null" json:"delta"`
	BalanceAfter   int64        `gorm:"not null" json:"balance_after"`
	Reason         EntryReason  `gorm:"type:text;not null" json:"reason"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (Entry) TableName() string { return "token_balance_entries" }

const StateExhausted = "EXHAUSTED"

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ConsumeRequest struct {
	SubscriptionID  snowflake.ID `json:"-"`
	Amount          int64        `json:"amount"`
	ExpectedVersion int64        `json:"version"`
}

type Service interface {
	Consume(ctx context.Context, req ConsumeRequest) (*TokenBalance, error)
	// Replenish resets the balance to amount, creating it when absent. It runs
	// inside tx when given so it commits with the subscription change driving it.
	Replenish(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, amount int64) (*TokenBalance, error)
	Get(ctx context.Context, subscriptionID snowflake.ID) (*TokenBalance, error)
	History(ctx context.Context, subscriptionID snowflake.ID, limit int) ([]Entry, error)
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*TokenBalance, error)
	Insert(ctx context.Context, db *gorm.DB, balance *TokenBalance) error
	// Debit subtracts amount when the version matches and the balance covers it.
	Debit(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, amount, expectedVersion int64, at time.Time) (bool, error)
	Reset(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, amount int64, at time.Time) (bool, error)
	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListEntries(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, limit int) ([]Entry, error)
}

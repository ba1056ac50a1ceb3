package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindActiveByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*Subscription, error)
	Expire(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, at time.Time) (bool, error)
	Advance(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, start, end, at time.Time) (bool, error)
	SetAutoRenew(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, autoRenew bool, at time.Time) (bool, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Subscription, error)
}

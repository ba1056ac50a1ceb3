package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/pricing"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     QuoteStatus
	CustomerID snowflake.ID
	BeforeID   snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quote, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Quote, error)
	// Decide moves a PENDING quote at expectedVersion to status.
	Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, status QuoteStatus, decidedBy *snowflake.ID, at time.Time) (bool, error)
	ApplyDiscount(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, percent int, totals pricing.Totals, at time.Time) (bool, error)
	ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Quote, error)
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     InvoiceStatus
	CustomerID snowflake.ID
	BeforeID   snowflake.ID
	Limit      int
}

type Repository interface {
	// Insert reports false when an invoice for the same quote already exists.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByQuoteID(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, reference string, at time.Time) (bool, error)
	MarkOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, at time.Time) (bool, error)
	ListPastDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Invoice, error)
}

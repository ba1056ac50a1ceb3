package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status   RequestStatus
	QuoteID  snowflake.ID
	BeforeID snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, request *DiscountRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DiscountRequest, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*DiscountRequest, error)
	Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, status RequestStatus, decidedBy *snowflake.ID, notes string, at time.Time) (bool, error)
}

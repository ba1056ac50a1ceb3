package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Plan, error)
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}

type ListFilter struct {
	ActiveOnly bool
	BeforeID   snowflake.ID
	Limit      int
}

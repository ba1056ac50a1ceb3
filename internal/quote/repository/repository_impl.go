package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/pricing"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() quotedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, quote *quotedomain.Quote) error {
	return db.WithContext(ctx).Create(quote).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*quotedomain.Quote, error) {
	var quotes []quotedomain.Quote
	err := db.WithContext(ctx).
		Model(&quotedomain.Quote{}).
		Where("id = ?", id).
		Limit(1).
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, nil
	}
	return &quotes[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter quotedomain.ListFilter) ([]*quotedomain.Quote, error) {
	query := db.WithContext(ctx).Model(&quotedomain.Quote{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.BeforeID != 0 {
		query = query.Where("id < ?", filter.BeforeID)
	}

	var quotes []*quotedomain.Quote
	if err := query.Order("id DESC").Limit(filter.Limit).Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *repo) Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, status quotedomain.QuoteStatus, decidedBy *snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET status = ?, decided_at = ?, decided_by = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		status,
		at,
		decidedBy,
		at,
		id,
		expectedVersion,
		quotedomain.QuoteStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ApplyDiscount(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, percent int, totals pricing.Totals, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE quotes
		 SET discount_percent = ?, subtotal = ?, discount_amount = ?, tax = ?, total = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		percent,
		totals.Subtotal,
		totals.DiscountAmount,
		totals.Tax,
		totals.Total,
		at,
		id,
		expectedVersion,
		quotedomain.QuoteStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpirable returns pending quotes with expiry_date <= now. A quote can no
// longer be accepted at its expiry instant, so the sweep closes it then too.
func (r *repo) ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]quotedomain.Quote, error) {
	var quotes []quotedomain.Quote
	err := db.WithContext(ctx).
		Model(&quotedomain.Quote{}).
		Where("status = ? AND expiry_date <= ?", quotedomain.QuoteStatusPending, now).
		Order("expiry_date ASC, id ASC").
		Limit(limit).
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() discountdomain.Repository {
	return &repo{}
}

const requestColumns = `id, quote_id, requested_by, discount_percent, justification, status,
	approved_by, notes, version, decided_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, request *discountdomain.DiscountRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO discount_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID,
		request.QuoteID,
		request.RequestedBy,
		request.DiscountPercent,
		request.Justification,
		request.Status,
		request.ApprovedBy,
		request.Notes,
		request.Version,
		request.DecidedAt,
		request.CreatedAt,
		request.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*discountdomain.DiscountRequest, error) {
	var request discountdomain.DiscountRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+requestColumns+` FROM discount_requests WHERE id = ?`,
		id,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter discountdomain.ListFilter) ([]*discountdomain.DiscountRequest, error) {
	query := db.WithContext(ctx).Model(&discountdomain.DiscountRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.QuoteID != 0 {
		query = query.Where("quote_id = ?", filter.QuoteID)
	}
	if filter.BeforeID != 0 {
		query = query.Where("id < ?", filter.BeforeID)
	}

	var requests []*discountdomain.DiscountRequest
	if err := query.Order("id DESC").Limit(filter.Limit).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) Decide(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, status discountdomain.RequestStatus, decidedBy *snowflake.ID, notes string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE discount_requests
		 SET status = ?, approved_by = ?, notes = ?, decided_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		status,
		decidedBy,
		notes,
		at,
		at,
		id,
		expectedVersion,
		discountdomain.RequestStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

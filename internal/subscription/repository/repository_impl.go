package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, customer_id, plan_id, status, current_period_start, current_period_end,
	auto_renew, version, created_at, updated_at, expired_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.CustomerID,
		subscription.PlanID,
		subscription.Status,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.AutoRenew,
		subscription.Version,
		subscription.CreatedAt,
		subscription.UpdatedAt,
		subscription.ExpiredAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindActiveByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE customer_id = ? AND status = ? LIMIT 1`,
		customerID,
		subscriptiondomain.SubscriptionStatusActive,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) Expire(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, expired_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		subscriptiondomain.SubscriptionStatusExpired,
		at,
		at,
		id,
		expectedVersion,
		subscriptiondomain.SubscriptionStatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Advance(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, start, end, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET current_period_start = ?, current_period_end = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		start,
		end,
		at,
		id,
		expectedVersion,
		subscriptiondomain.SubscriptionStatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) SetAutoRenew(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, autoRenew bool, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET auto_renew = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status <> ?`,
		autoRenew,
		at,
		id,
		expectedVersion,
		subscriptiondomain.SubscriptionStatusExpired,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = ? AND current_period_end <= ?
		 ORDER BY current_period_end ASC, id ASC
		 LIMIT ?`,
		subscriptiondomain.SubscriptionStatusActive,
		now,
		limit,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

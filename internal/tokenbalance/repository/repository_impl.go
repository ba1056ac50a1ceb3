package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tokenbalancedomain.Repository {
	return &repo{}
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*tokenbalancedomain.TokenBalance, error) {
	var balance tokenbalancedomain.TokenBalance
	err := db.WithContext(ctx).Raw(
		`SELECT subscription_id, balance, version, updated_at FROM token_balances WHERE subscription_id = ?`,
		subscriptionID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.SubscriptionID == 0 {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, balance *tokenbalancedomain.TokenBalance) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO token_balances (subscription_id, balance, version, updated_at) VALUES (?, ?, ?, ?)`,
		balance.SubscriptionID,
		balance.Balance,
		balance.Version,
		balance.UpdatedAt,
	).Error
}

func (r *repo) Debit(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, amount, expectedVersion int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE token_balances
		 SET balance = balance - ?, version = version + 1, updated_at = ?
		 WHERE subscription_id = ? AND version = ? AND balance >= ?`,
		amount,
		at,
		subscriptionID,
		expectedVersion,
		amount,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Reset(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, amount int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE token_balances SET balance = ?, version = version + 1, updated_at = ? WHERE subscription_id = ?`,
		amount,
		at,
		subscriptionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *tokenbalancedomain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO token_balance_entries (id, subscription_id, delta, balance_after, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.SubscriptionID,
		entry.Delta,
		entry.BalanceAfter,
		entry.Reason,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, limit int) ([]tokenbalancedomain.Entry, error) {
	var entries []tokenbalancedomain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, delta, balance_after, reason, created_at
		 FROM token_balance_entries
		 WHERE subscription_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		subscriptionID,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() billingeventdomain.Repository {
	return &repo{}
}

// Insert stores the event unless its dedupe key already exists. It reports whether a row was written.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *billingeventdomain.BillingEvent) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]billingeventdomain.BillingEvent, error) {
	var events []billingeventdomain.BillingEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, entity_type, entity_id, state, payload, dedupe_key, occurred_at, published, published_at
		 FROM billing_events
		 WHERE published = ?
		 ORDER BY id ASC
		 LIMIT ?`,
		false,
		limit,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_events SET published = ?, published_at = ? WHERE id = ? AND published = ?`,
		true,
		at,
		id,
		false,
	).Error
}

func (r *repo) ListByEntity(ctx context.Context, db *gorm.DB, entityType string, entityID snowflake.ID) ([]billingeventdomain.BillingEvent, error) {
	var events []billingeventdomain.BillingEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, entity_type, entity_id, state, payload, dedupe_key, occurred_at, published, published_at
		 FROM billing_events
		 WHERE entity_type = ? AND entity_id = ?
		 ORDER BY id ASC`,
		entityType,
		entityID,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

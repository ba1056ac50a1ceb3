package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) (bool, error) {
	query := db.WithContext(ctx)
	if invoice.QuoteID != nil {
		query = query.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "quote_id"}}, DoNothing: true})
	}
	res := query.Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByQuoteID(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.findOne(ctx, db, "quote_id = ?", quoteID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, cond string, args ...any) (*invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where(cond, args...).
		Limit(1).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter invoicedomain.ListFilter) ([]*invoicedomain.Invoice, error) {
	query := db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.BeforeID != 0 {
		query = query.Where("id < ?", filter.BeforeID)
	}

	var invoices []*invoicedomain.Invoice
	if err := query.Order("id DESC").Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, reference string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, payment_reference = ?, paid_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status IN (?, ?)`,
		invoicedomain.InvoiceStatusPaid,
		reference,
		at,
		at,
		id,
		expectedVersion,
		invoicedomain.InvoiceStatusPending,
		invoicedomain.InvoiceStatusOverdue,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		invoicedomain.InvoiceStatusOverdue,
		at,
		id,
		expectedVersion,
		invoicedomain.InvoiceStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListPastDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("status = ? AND due_date < ?", invoicedomain.InvoiceStatusPending, now).
		Order("due_date ASC, id ASC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

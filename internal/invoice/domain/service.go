package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/pricing"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

// FromQuoteRequest carries the accepted quote's snapshot into the ledger.
type FromQuoteRequest struct {
	QuoteID       snowflake.ID
	CustomerID    snowflake.ID
	QuoteAccepted bool
	Items         []pricing.LineItem
	Totals        pricing.Totals
}

type StandaloneRequest struct {
	CustomerID snowflake.ID       `json:"customer_id"`
	Items      []pricing.LineItem `json:"items"`
	Tax        int64              `json:"tax"`
}

type MarkPaidRequest struct {
	InvoiceID        snowflake.ID `json:"-"`
	PaymentReference string       `json:"payment_reference"`
	ExpectedVersion  int64        `json:"version"`
}

type ListRequest struct {
	Status     string       `form:"status"`
	CustomerID snowflake.ID `form:"-"`
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []*Invoice `json:"invoices"`
}

type Service interface {
	// GenerateFromQuote is idempotent per quote: a repeat call returns the
	// existing invoice together with ErrAlreadyInvoiced. A non-nil tx joins
	// the caller's transaction.
	GenerateFromQuote(ctx context.Context, tx *gorm.DB, req FromQuoteRequest) (*Invoice, error)
	GenerateStandalone(ctx context.Context, req StandaloneRequest) (*Invoice, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (*Invoice, error)
	OverdueSweep(ctx context.Context, now time.Time, limit int) (int, error)
	Get(ctx context.Context, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/pricing"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateRequest struct {
	CustomerID snowflake.ID       `json:"customer_id"`
	Items      []pricing.LineItem `json:"items"`
	Tax        int64              `json:"tax"`
	// ExpiryDate defaults to the configured validity window when nil.
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

type DecisionRequest struct {
	QuoteID         snowflake.ID `json:"-"`
	ExpectedVersion int64        `json:"version"`
}

type ApplyDiscountRequest struct {
	QuoteID         snowflake.ID
	DiscountPercent int
	ExpectedVersion int64
}

// AcceptResult carries the invoice generated on acceptance, if any.
type AcceptResult struct {
	Quote   *Quote                 `json:"quote"`
	Invoice *invoicedomain.Invoice `json:"invoice,omitempty"`
}

type ListRequest struct {
	Status     string       `form:"status"`
	CustomerID snowflake.ID `form:"-"`
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Quotes []*Quote `json:"quotes"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Quote, error)
	Accept(ctx context.Context, req DecisionRequest) (*AcceptResult, error)
	Reject(ctx context.Context, req DecisionRequest) (*Quote, error)
	// ApplyDiscount recomputes totals with a new discount inside the caller's transaction.
	ApplyDiscount(ctx context.Context, tx *gorm.DB, req ApplyDiscountRequest) (*Quote, error)
	ExpireSweep(ctx context.Context, now time.Time, limit int) (int, error)
	ToInvoice(ctx context.Context, quoteID snowflake.ID) (*invoicedomain.Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (*Quote, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

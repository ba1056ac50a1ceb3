package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

type CreateRequest struct {
	QuoteID         *snowflake.ID `json:"quote_id,omitempty"`
	DiscountPercent int           `json:"discount_percent"`
	Justification   string        `json:"justification"`
}

type ApproveRequest struct {
	RequestID       snowflake.ID `json:"-"`
	ExpectedVersion int64        `json:"version"`
}

type RejectRequest struct {
	RequestID       snowflake.ID `json:"-"`
	Notes           string       `json:"notes"`
	ExpectedVersion int64        `json:"version"`
}

type ListRequest struct {
	Status  string       `form:"status"`
	QuoteID snowflake.ID `form:"-"`
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Requests []*DiscountRequest `json:"discount_requests"`
}

type Service interface {
	Request(ctx context.Context, req CreateRequest) (*DiscountRequest, error)
	// Approve decides the request and, when it targets a quote, reprices the
	// quote in the same transaction. A quote conflict leaves the request PENDING.
	Approve(ctx context.Context, req ApproveRequest) (*DiscountRequest, error)
	Reject(ctx context.Context, req RejectRequest) (*DiscountRequest, error)
	Get(ctx context.Context, id snowflake.ID) (*DiscountRequest, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

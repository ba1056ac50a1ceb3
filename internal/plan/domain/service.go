package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

type CreateRequest struct {
	Name                string `json:"name"`
	Price               int64  `json:"price"`
	TokenAmount         int64  `json:"token_amount"`
	BillingIntervalDays int    `json:"billing_interval_days"`
}

type ListRequest struct {
	ActiveOnly bool `form:"active_only"`
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Plans []*Plan `json:"plans"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Plan, error)
	Get(ctx context.Context, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Retire(ctx context.Context, id snowflake.ID) (*Plan, error)
}

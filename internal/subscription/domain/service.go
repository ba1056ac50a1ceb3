package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ActivateRequest struct {
	CustomerID snowflake.ID `json:"customer_id"`
	PlanID     snowflake.ID `json:"plan_id"`
	// AutoRenew defaults to true when omitted.
	AutoRenew *bool `json:"auto_renew,omitempty"`
}

type SetAutoRenewRequest struct {
	SubscriptionID  snowflake.ID `json:"-"`
	AutoRenew       bool         `json:"auto_renew"`
	ExpectedVersion int64        `json:"version"`
}

type Service interface {
	// Activate starts a subscription and supersedes the customer's current one.
	Activate(ctx context.Context, req ActivateRequest) (*Subscription, error)
	// Renew closes a due period: it advances and replenishes when auto-renewing,
	// otherwise it expires the subscription.
	Renew(ctx context.Context, id snowflake.ID) (*Subscription, error)
	RenewDue(ctx context.Context, now time.Time, limit int) (int, error)
	SetAutoRenew(ctx context.Context, req SetAutoRenewRequest) (*Subscription, error)
	Get(ctx context.Context, id snowflake.ID) (*Subscription, error)
	GetActiveByCustomer(ctx context.Context, customerID snowflake.ID) (*Subscription, error)
}

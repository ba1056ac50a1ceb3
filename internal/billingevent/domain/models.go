// Package domain contains the outbox model for billing domain events.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	EventQuoteAccepted         = "QuoteAccepted"
	EventQuoteRejected         = "QuoteRejected"
	EventQuoteExpired          = "QuoteExpired"
	EventDiscountApproved      = "DiscountApproved"
	EventDiscountRejected      = "DiscountRejected"
	EventInvoiceGenerated      = "InvoiceGenerated"
	EventInvoicePaid           = "InvoicePaid"
	EventInvoiceOverdue        = "InvoiceOverdue"
	EventBalanceExhausted      = "BalanceExhausted"
	EventSubscriptionActivated = "SubscriptionActivated"
	EventSubscriptionRenewed   = "SubscriptionRenewed"
	EventSubscriptionExpired   = "SubscriptionExpired"
)

const (
	EntityQuote           = "quote"
	EntityDiscountRequest = "discount_request"
	EntityInvoice         = "invoice"
	EntityTokenBalance    = "token_balance"
	EntitySubscription    = "subscription"
)

// Channel is the Redis Pub/Sub channel events are relayed to.
const Channel = "billing.events"

// BillingEvent is an outbox row written in the same transaction as the change it describes.
type BillingEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	EventType   string         `gorm:"type:text;not null" json:"event_type"`
	EntityType  string         `gorm:"type:text;not null" json:"entity_type"`
	EntityID    snowflake.ID   `gorm:"not null;index" json:"entity_id"`
	State       string         `gorm:"type:text;not null" json:"state"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	DedupeKey   string         `gorm:"type:text;not null;uniqueIndex:ux_billing_events_dedupe" json:"dedupe_key"`
	OccurredAt  time.Time      `gorm:"not null" json:"occurred_at"`
	Published   bool           `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

func (BillingEvent) TableName() string { return "billing_events" }

// Event is what a domain service records when an entity reaches a new state.
type Event struct {
	Type       string
	EntityType string
	EntityID   snowflake.ID
	State      string
	// Version disambiguates repeated visits to the same state, such as successive renewals.
	Version    int64
	OccurredAt time.Time
	Payload    any
}

// Message is the JSON document published to consumers.
type Message struct {
	MessageID  string         `json:"message_id"`
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	DedupeKey  string         `json:"dedupe_key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
}

// Emitter writes outbox rows. A nil tx runs the insert on the emitter's own handle.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event Event) error
}

// Publisher delivers a relayed message to consumers.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Relay moves unpublished outbox rows to the Publisher.
type Relay interface {
	RelayPending(ctx context.Context, limit int) (int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *BillingEvent) (bool, error)
	ListUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]BillingEvent, error)
	MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	ListByEntity(ctx context.Context, db *gorm.DB, entityType string, entityID snowflake.ID) ([]BillingEvent, error)
}

package service

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RelayParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      billingeventdomain.Repository
	Publisher billingeventdomain.Publisher
	Metrics   *metrics.BillingMetrics `optional:"true"`
}

type Relay struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      billingeventdomain.Repository
	publisher billingeventdomain.Publisher
	metrics   *metrics.BillingMetrics
}

func NewRelay(p RelayParam) billingeventdomain.Relay {
	return &Relay{
		db:        p.DB,
		log:       p.Log.Named("billingevent.relay"),
		clock:     p.Clock,
		repo:      p.Repo,
		publisher: p.Publisher,
		metrics:   p.Metrics,
	}
}

// RelayPending publishes up to limit unpublished events in id order. A publish
// failure stops the batch so later events are not delivered ahead of it.
// Delivery is at-least-once: a crash between publish and mark re-sends the event.
func (r *Relay) RelayPending(ctx context.Context, limit int) (int, error) {
	events, err := r.repo.ListUnpublished(ctx, r.db, limit)
	if err != nil {
		return 0, fmt.Errorf("list unpublished events: %w", err)
	}

	relayed := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return relayed, err
		}
		if err := r.publisher.Publish(ctx, ToMessage(event)); err != nil {
			return relayed, err
		}
		if err := r.repo.MarkPublished(ctx, r.db, event.ID, r.clock.Now()); err != nil {
			return relayed, fmt.Errorf("mark event %s published: %w", event.ID, err)
		}
		r.metrics.EventPublished(event.EventType)
		relayed++
	}

	if relayed > 0 {
		r.log.Debug("relayed events", zap.Int("count", relayed))
	}
	return relayed, nil
}

// ToMessage converts an outbox row into its wire form with a fresh message id.
func ToMessage(event billingeventdomain.BillingEvent) billingeventdomain.Message {
	return billingeventdomain.Message{
		MessageID:  ulid.Make().String(),
		EventID:    event.ID.String(),
		EventType:  event.EventType,
		EntityType: event.EntityType,
		EntityID:   event.EntityID.String(),
		State:      event.State,
		DedupeKey:  event.DedupeKey,
		OccurredAt: event.OccurredAt,
		Payload:    event.Payload,
	}
}

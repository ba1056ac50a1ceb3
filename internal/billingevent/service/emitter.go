package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EmitterParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  billingeventdomain.Repository
}

type Emitter struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  billingeventdomain.Repository
}

func NewEmitter(p EmitterParam) billingeventdomain.Emitter {
	return &Emitter{
		db:    p.DB,
		log:   p.Log.Named("billingevent.emitter"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Emit writes the event to the outbox. Re-emitting the same entity state is a no-op.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, event billingeventdomain.Event) error {
	if tx == nil {
		tx = e.db
	}

	payload := []byte("{}")
	if event.Payload != nil {
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event.Type, err)
		}
		payload = encoded
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = e.clock.Now()
	}

	row := &billingeventdomain.BillingEvent{
		ID:         e.genID.Generate(),
		EventType:  event.Type,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		State:      event.State,
		Payload:    datatypes.JSON(payload),
		DedupeKey:  DedupeKey(event),
		OccurredAt: occurredAt,
	}

	inserted, err := e.repo.Insert(ctx, tx, row)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", event.Type, err)
	}
	if !inserted {
		e.log.Debug("duplicate event suppressed", zap.String("dedupe_key", row.DedupeKey))
	}
	return nil
}

// DedupeKey identifies an entity reaching a state; consumers dedupe on the same key.
func DedupeKey(event billingeventdomain.Event) string {
	return fmt.Sprintf("%s:%s:%s:%d", event.EntityType, event.EntityID.String(), event.State, event.Version)
}

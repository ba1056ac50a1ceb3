package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/apperror"
	"github.com/smallbiznis/backoffice/internal/authorization"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	plandomain "github.com/smallbiznis/backoffice/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	authz  authorization.Service
	events billingeventdomain.Emitter
	plans  plandomain.Service
	tokens tokenbalancedomain.Service
	repo   subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Authz  authorization.Service
	Events billingeventdomain.Emitter
	Plans  plandomain.Service
	Tokens tokenbalancedomain.Service
	Repo   subscriptiondomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("subscription.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		authz:  p.Authz,
		events: p.Events,
		plans:  p.Plans,
		tokens: p.Tokens,
		repo:   p.Repo,
	}
}

func (s *Service) Activate(ctx context.Context, req subscriptiondomain.ActivateRequest) (*subscriptiondomain.Subscription, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionSubscriptionActivate); err != nil {
		return nil, err
	}
	if req.CustomerID == 0 {
		return nil, subscriptiondomain.ErrInvalidCustomer
	}
	if req.PlanID == 0 {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	plan, err := s.plans.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, plandomain.ErrPlanInactive
	}

	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}

	now := s.clock.Now()
	subscription := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		CustomerID:         req.CustomerID,
		PlanID:             plan.ID,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(plan.BillingInterval()),
		AutoRenew:          autoRenew,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindActiveByCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return fmt.Errorf("find active subscription: %w", err)
		}
		if current != nil {
			if err := s.expire(ctx, tx, current, now); err != nil {
				return err
			}
		}

		if err := s.repo.Insert(ctx, tx, subscription); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return subscriptiondomain.ErrActiveSubscriptionExists
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		if _, err := s.tokens.Replenish(ctx, tx, subscription.ID, plan.TokenAmount); err != nil {
			return err
		}

		return s.emit(ctx, tx, billingeventdomain.EventSubscriptionActivated, subscription, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription activated",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("customer_id", subscription.CustomerID.String()),
		zap.String("plan_id", subscription.PlanID.String()),
	)
	return subscription, nil
}

func (s *Service) Renew(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionSubscriptionRenew); err != nil {
		return nil, err
	}

	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renew(ctx, subscription)
}

func (s *Service) renew(ctx context.Context, subscription *subscriptiondomain.Subscription) (*subscriptiondomain.Subscription, error) {
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, subscriptiondomain.ErrNotActive
	}

	now := s.clock.Now()
	if now.Before(subscription.CurrentPeriodEnd) {
		return nil, subscriptiondomain.ErrNotDue
	}

	if !subscription.AutoRenew {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.expire(ctx, tx, subscription, now)
		})
		if err != nil {
			return nil, err
		}
		s.log.Info("subscription expired", zap.String("subscription_id", subscription.ID.String()))
		return s.Get(ctx, subscription.ID)
	}

	plan, err := s.plans.Get(ctx, subscription.PlanID)
	if err != nil {
		return nil, err
	}

	start := subscription.CurrentPeriodEnd
	end := start.Add(plan.BillingInterval())
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Advance(ctx, tx, subscription.ID, subscription.Version, start, end, now)
		if err != nil {
			return fmt.Errorf("advance subscription: %w", err)
		}
		if !ok {
			return subscriptiondomain.ErrVersionMismatch
		}
		if _, err := s.tokens.Replenish(ctx, tx, subscription.ID, plan.TokenAmount); err != nil {
			return err
		}

		renewed := *subscription
		renewed.CurrentPeriodStart = start
		renewed.CurrentPeriodEnd = end
		renewed.Version++
		return s.emit(ctx, tx, billingeventdomain.EventSubscriptionRenewed, &renewed, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription renewed",
		zap.String("subscription_id", subscription.ID.String()),
		zap.Time("period_end", end),
	)
	return s.Get(ctx, subscription.ID)
}

// RenewDue renews every ACTIVE subscription whose period ended at or before now.
// Rows changed concurrently are skipped and picked up by a later run.
func (s *Service) RenewDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionSubscriptionRenew); err != nil {
		return 0, err
	}

	due, err := s.repo.ListDue(ctx, s.db, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list due subscriptions: %w", err)
	}

	processed := 0
	for i := range due {
		if _, err := s.renew(ctx, &due[i]); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				s.log.Debug("skipping subscription renewal",
					zap.String("subscription_id", due[i].ID.String()),
					zap.Error(err),
				)
				continue
			}
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (s *Service) SetAutoRenew(ctx context.Context, req subscriptiondomain.SetAutoRenewRequest) (*subscriptiondomain.Subscription, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionSubscriptionUpdate); err != nil {
		return nil, err
	}

	subscription, err := s.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription.Status == subscriptiondomain.SubscriptionStatusExpired {
		return nil, subscriptiondomain.ErrNotActive
	}
	if subscription.Version != req.ExpectedVersion {
		return nil, subscriptiondomain.ErrVersionMismatch
	}

	ok, err := s.repo.SetAutoRenew(ctx, s.db, subscription.ID, req.ExpectedVersion, req.AutoRenew, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if !ok {
		return nil, subscriptiondomain.ErrVersionMismatch
	}
	return s.Get(ctx, subscription.ID)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) GetActiveByCustomer(ctx context.Context, customerID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindActiveByCustomer(ctx, s.db, customerID)
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) expire(ctx context.Context, tx *gorm.DB, subscription *subscriptiondomain.Subscription, now time.Time) error {
	if !subscription.Status.CanTransitionTo(subscriptiondomain.SubscriptionStatusExpired) {
		return subscriptiondomain.ErrNotActive
	}

	ok, err := s.repo.Expire(ctx, tx, subscription.ID, subscription.Version, now)
	if err != nil {
		return fmt.Errorf("expire subscription: %w", err)
	}
	if !ok {
		return subscriptiondomain.ErrVersionMismatch
	}

	expired := *subscription
	expired.Status = subscriptiondomain.SubscriptionStatusExpired
	expired.ExpiredAt = &now
	expired.Version++
	return s.emit(ctx, tx, billingeventdomain.EventSubscriptionExpired, &expired, now)
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType string, subscription *subscriptiondomain.Subscription, at time.Time) error {
	return s.events.Emit(ctx, tx, billingeventdomain.Event{
		Type:       eventType,
		EntityType: billingeventdomain.EntitySubscription,
		EntityID:   subscription.ID,
		State:      string(subscription.Status),
		Version:    subscription.Version,
		OccurredAt: at,
		Payload: map[string]any{
			"customer_id":          subscription.CustomerID.String(),
			"plan_id":              subscription.PlanID.String(),
			"current_period_start": subscription.CurrentPeriodStart,
			"current_period_end":   subscription.CurrentPeriodEnd,
		},
	})
}

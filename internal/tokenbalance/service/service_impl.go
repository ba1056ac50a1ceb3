package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/authorization"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 250
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	authz   authorization.Service
	events  billingeventdomain.Emitter
	metrics *metrics.BillingMetrics
	repo    tokenbalancedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Authz   authorization.Service
	Events  billingeventdomain.Emitter
	Metrics *metrics.BillingMetrics `optional:"true"`
	Repo    tokenbalancedomain.Repository
}

func NewService(p ServiceParam) tokenbalancedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("tokenbalance.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		authz:   p.Authz,
		events:  p.Events,
		metrics: p.Metrics,
		repo:    p.Repo,
	}
}

// Consume debits amount tokens with a single conditional update. The balance
// never goes below zero; a short balance leaves the row untouched.
func (s *Service) Consume(ctx context.Context, req tokenbalancedomain.ConsumeRequest) (*tokenbalancedomain.TokenBalance, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionTokensConsume); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, tokenbalancedomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var (
		updated   *tokenbalancedomain.TokenBalance
		exhausted *tokenbalancedomain.TokenBalance
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Debit(ctx, tx, req.SubscriptionID, req.Amount, req.ExpectedVersion, now)
		if err != nil {
			return fmt.Errorf("debit token balance: %w", err)
		}
		if !ok {
			current, err := s.repo.FindBySubscriptionID(ctx, tx, req.SubscriptionID)
			if err != nil {
				return fmt.Errorf("reload token balance: %w", err)
			}
			switch {
			case current == nil:
				return tokenbalancedomain.ErrBalanceNotFound
			case current.Version != req.ExpectedVersion:
				return tokenbalancedomain.ErrVersionMismatch
			default:
				exhausted = current
				return tokenbalancedomain.ErrInsufficientBalance
			}
		}

		balance, err := s.repo.FindBySubscriptionID(ctx, tx, req.SubscriptionID)
		if err != nil {
			return fmt.Errorf("reload token balance: %w", err)
		}
		if err := s.repo.InsertEntry(ctx, tx, &tokenbalancedomain.Entry{
			ID:             s.genID.Generate(),
			SubscriptionID: req.SubscriptionID,
			Delta:          -req.Amount,
			BalanceAfter:   balance.Balance,
			Reason:         tokenbalancedomain.EntryReasonConsume,
			CreatedAt:      now,
		}); err != nil {
			return fmt.Errorf("insert token entry: %w", err)
		}
		updated = balance
		return nil
	})
	if err != nil {
		s.metrics.TokenConsume(consumeOutcome(err))
		if exhausted != nil {
			s.emitExhausted(ctx, exhausted, req.Amount)
		}
		return nil, err
	}

	s.metrics.TokenConsume("ok")
	return updated, nil
}

func (s *Service) emitExhausted(ctx context.Context, balance *tokenbalancedomain.TokenBalance, requested int64) {
	err := s.events.Emit(ctx, nil, billingeventdomain.Event{
		Type:       billingeventdomain.EventBalanceExhausted,
		EntityType: billingeventdomain.EntityTokenBalance,
		EntityID:   balance.SubscriptionID,
		State:      tokenbalancedomain.StateExhausted,
		Version:    balance.Version,
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"subscription_id": balance.SubscriptionID.String(),
			"balance":         balance.Balance,
			"requested":       requested,
		},
	})
	if err != nil {
		s.log.Warn("failed to record balance exhausted event",
			zap.String("subscription_id", balance.SubscriptionID.String()),
			zap.Error(err),
		)
	}
}

func consumeOutcome(err error) string {
	switch {
	case errors.Is(err, tokenbalancedomain.ErrInsufficientBalance):
		return "insufficient"
	case errors.Is(err, tokenbalancedomain.ErrVersionMismatch):
		return "conflict"
	case errors.Is(err, tokenbalancedomain.ErrBalanceNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *Service) Replenish(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, amount int64) (*tokenbalancedomain.TokenBalance, error) {
	if amount < 0 {
		return nil, tokenbalancedomain.ErrInvalidAmount
	}

	var result *tokenbalancedomain.TokenBalance
	run := func(tx *gorm.DB) error {
		now := s.clock.Now()
		current, err := s.repo.FindBySubscriptionID(ctx, tx, subscriptionID)
		if err != nil {
			return fmt.Errorf("find token balance: %w", err)
		}

		var previous int64
		if current == nil {
			if err := s.repo.Insert(ctx, tx, &tokenbalancedomain.TokenBalance{
				SubscriptionID: subscriptionID,
				Balance:        amount,
				Version:        1,
				UpdatedAt:      now,
			}); err != nil {
				return fmt.Errorf("insert token balance: %w", err)
			}
		} else {
			previous = current.Balance
			if _, err := s.repo.Reset(ctx, tx, subscriptionID, amount, now); err != nil {
				return fmt.Errorf("reset token balance: %w", err)
			}
		}

		if err := s.repo.InsertEntry(ctx, tx, &tokenbalancedomain.Entry{
			ID:             s.genID.Generate(),
			SubscriptionID: subscriptionID,
			Delta:          amount - previous,
			BalanceAfter:   amount,
			Reason:         tokenbalancedomain.EntryReasonReplenish,
			CreatedAt:      now,
		}); err != nil {
			return fmt.Errorf("insert token entry: %w", err)
		}

		result, err = s.repo.FindBySubscriptionID(ctx, tx, subscriptionID)
		if err != nil {
			return fmt.Errorf("reload token balance: %w", err)
		}
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return nil, err
	}

	s.log.Debug("token balance replenished",
		zap.String("subscription_id", subscriptionID.String()),
		zap.Int64("balance", amount),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, subscriptionID snowflake.ID) (*tokenbalancedomain.TokenBalance, error) {
	balance, err := s.repo.FindBySubscriptionID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("find token balance: %w", err)
	}
	if balance == nil {
		return nil, tokenbalancedomain.ErrBalanceNotFound
	}
	return balance, nil
}

func (s *Service) History(ctx context.Context, subscriptionID snowflake.ID, limit int) ([]tokenbalancedomain.Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.repo.ListEntries(ctx, s.db, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list token entries: %w", err)
	}
	return entries, nil
}

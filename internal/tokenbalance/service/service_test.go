package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/apperror"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	billingeventrepo "github.com/smallbiznis/backoffice/internal/billingevent/repository"
	billingeventsvc "github.com/smallbiznis/backoffice/internal/billingevent/service"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/testutil"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	"github.com/smallbiznis/backoffice/internal/tokenbalance/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const subscriptionID = snowflake.ID(1001)

type fixture struct {
	db     *gorm.DB
	svc    tokenbalancedomain.Service
	events billingeventdomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Epoch)
	events := billingeventrepo.Provide()
	emitter := billingeventsvc.NewEmitter(billingeventsvc.EmitterParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: events,
	})

	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Authz:  testutil.NewAuthz(t),
		Events: emitter,
		Repo:   repository.Provide(),
	})
	return fixture{db: db, svc: svc, events: events}
}

func system() context.Context {
	return actor.WithSystem(context.Background())
}

func TestReplenishCreatesThenResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	balance, err := f.svc.Replenish(ctx, nil, subscriptionID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)
	assert.Equal(t, int64(1), balance.Version)

	_, err = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: subscriptionID, Amount: 30, ExpectedVersion: 1})
	require.NoError(t, err)

	balance, err = f.svc.Replenish(ctx, nil, subscriptionID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)
	assert.Equal(t, int64(3), balance.Version)

	history, err := f.svc.History(ctx, subscriptionID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, tokenbalancedomain.EntryReasonReplenish, history[0].Reason)
	assert.Equal(t, int64(30), history[0].Delta)
	assert.Equal(t, int64(-30), history[1].Delta)
	assert.Equal(t, int64(70), history[1].BalanceAfter)

	_, err = f.svc.Replenish(ctx, nil, subscriptionID, -1)
	assert.ErrorIs(t, err, tokenbalancedomain.ErrInvalidAmount)
}

// Consuming past the balance fails and leaves it untouched.
func TestConsumeInsufficientBalance(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Replenish(context.Background(), nil, subscriptionID, 5)
	require.NoError(t, err)

	balance, err := f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: subscriptionID, Amount: 3, ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance.Balance)
	assert.Equal(t, int64(2), balance.Version)

	_, err = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: subscriptionID, Amount: 3, ExpectedVersion: 2})
	assert.ErrorIs(t, err, tokenbalancedomain.ErrInsufficientBalance)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance)

	current, err := f.svc.Get(context.Background(), subscriptionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Balance)
	assert.Equal(t, int64(2), current.Version)

	events, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntityTokenBalance, subscriptionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, billingeventdomain.EventBalanceExhausted, events[0].EventType)
}

func TestConsumeErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Replenish(context.Background(), nil, subscriptionID, 10)
	require.NoError(t, err)

	_, err = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: subscriptionID, Amount: 0, ExpectedVersion: 1})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: subscriptionID, Amount: 1, ExpectedVersion: 9})
	assert.ErrorIs(t, err, tokenbalancedomain.ErrVersionMismatch)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: 999, Amount: 1, ExpectedVersion: 1})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Consume(testutil.As(actor.RoleSales, 5), tokenbalancedomain.ConsumeRequest{SubscriptionID: subscriptionID, Amount: 1, ExpectedVersion: 1})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Replenish(context.Background(), nil, subscriptionID, 10)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				current, err := f.svc.Get(context.Background(), subscriptionID)
				if err != nil {
					return
				}
				_, err = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{
					SubscriptionID:  subscriptionID,
					Amount:          3,
					ExpectedVersion: current.Version,
				})
				switch {
				case err == nil:
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				case errors.Is(err, apperror.ErrConflict):
					continue
				default:
					return
				}
			}
		}()
	}
	wg.Wait()

	balance, err := f.svc.Get(context.Background(), subscriptionID)
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(1), balance.Balance)
	assert.GreaterOrEqual(t, balance.Balance, int64(0))
}

func TestConcurrentConsumeSameVersionOneWins(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Replenish(context.Background(), nil, subscriptionID, 100)
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Consume(system(), tokenbalancedomain.ConsumeRequest{
				SubscriptionID:  subscriptionID,
				Amount:          60,
				ExpectedVersion: 1,
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrInsufficientBalance), err)
		}
	}
	assert.Equal(t, 1, failures)

	balance, err := f.svc.Get(context.Background(), subscriptionID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.Balance)
}

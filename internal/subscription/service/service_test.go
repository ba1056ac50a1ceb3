package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/apperror"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	billingeventrepo "github.com/smallbiznis/backoffice/internal/billingevent/repository"
	billingeventsvc "github.com/smallbiznis/backoffice/internal/billingevent/service"
	"github.com/smallbiznis/backoffice/internal/clock"
	plandomain "github.com/smallbiznis/backoffice/internal/plan/domain"
	planrepo "github.com/smallbiznis/backoffice/internal/plan/repository"
	plansvc "github.com/smallbiznis/backoffice/internal/plan/service"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	"github.com/smallbiznis/backoffice/internal/subscription/repository"
	"github.com/smallbiznis/backoffice/internal/testutil"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	tokenbalancerepo "github.com/smallbiznis/backoffice/internal/tokenbalance/repository"
	tokenbalancesvc "github.com/smallbiznis/backoffice/internal/tokenbalance/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const customerID = snowflake.ID(501)

type fixture struct {
	db     *gorm.DB
	clock  *clock.FakeClock
	plans  plandomain.Service
	tokens tokenbalancedomain.Service
	svc    subscriptiondomain.Service
	events billingeventdomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Epoch)
	authz := testutil.NewAuthz(t)
	events := billingeventrepo.Provide()
	emitter := billingeventsvc.NewEmitter(billingeventsvc.EmitterParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: events,
	})

	plans := plansvc.NewService(plansvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Authz: authz, Repo: planrepo.Provide(),
	})
	tokens := tokenbalancesvc.NewService(tokenbalancesvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Authz: authz, Events: emitter, Repo: tokenbalancerepo.Provide(),
	})
	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Authz:  authz,
		Events: emitter,
		Plans:  plans,
		Tokens: tokens,
		Repo:   repository.Provide(),
	})
	return fixture{db: db, clock: clk, plans: plans, tokens: tokens, svc: svc, events: events}
}

func (f fixture) createPlan(t *testing.T, name string, tokens int64) *plandomain.Plan {
	t.Helper()
	plan, err := f.plans.Create(testutil.As(actor.RoleAdmin, 1), plandomain.CreateRequest{
		Name:                name,
		Price:               10000,
		TokenAmount:         tokens,
		BillingIntervalDays: 30,
	})
	require.NoError(t, err)
	return plan
}

func sales() context.Context {
	return testutil.As(actor.RoleSales, 7)
}

func system() context.Context {
	return actor.WithSystem(context.Background())
}

// Switching plans supersedes the active subscription and resets tokens.
func TestActivateSupersedesActiveSubscription(t *testing.T) {
	f := newFixture(t)
	basic := f.createPlan(t, "Basic", 100)
	pro := f.createPlan(t, "Pro", 500)

	first, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: basic.ID})
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, first.Status)
	assert.True(t, first.CurrentPeriodEnd.Equal(testutil.Epoch.AddDate(0, 0, 30)))

	balance, err := f.tokens.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Balance)

	second, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: pro.ID})
	require.NoError(t, err)

	old, err := f.svc.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusExpired, old.Status)
	assert.NotNil(t, old.ExpiredAt)

	active, err := f.svc.GetActiveByCustomer(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	balance, err = f.tokens.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.Balance)

	events, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntitySubscription, first.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, billingeventdomain.EventSubscriptionActivated, events[0].EventType)
	assert.Equal(t, billingeventdomain.EventSubscriptionExpired, events[1].EventType)
}

func TestActivateRejectsUnknownOrRetiredPlan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: 42})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	plan := f.createPlan(t, "Sunset", 10)
	_, err = f.plans.Retire(testutil.As(actor.RoleAdmin, 1), plan.ID)
	require.NoError(t, err)

	_, err = f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: plan.ID})
	assert.ErrorIs(t, err, plandomain.ErrPlanInactive)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Activate(testutil.As(actor.RoleCustomer, customerID), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: plan.ID})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestRenewAdvancesPeriodAndReplenishes(t *testing.T) {
	f := newFixture(t)
	plan := f.createPlan(t, "Monthly", 50)

	sub, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: plan.ID})
	require.NoError(t, err)

	_, err = f.tokens.Consume(system(), tokenbalancedomain.ConsumeRequest{SubscriptionID: sub.ID, Amount: 20, ExpectedVersion: 1})
	require.NoError(t, err)

	_, err = f.svc.Renew(system(), sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotDue)

	f.clock.Advance(31 * 24 * time.Hour)
	renewed, err := f.svc.Renew(system(), sub.ID)
	require.NoError(t, err)
	assert.True(t, renewed.CurrentPeriodStart.Equal(sub.CurrentPeriodEnd))
	assert.True(t, renewed.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd.AddDate(0, 0, 30)))
	assert.Equal(t, sub.Version+1, renewed.Version)

	balance, err := f.tokens.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.Balance)
}

func TestRenewWithoutAutoRenewExpires(t *testing.T) {
	f := newFixture(t)
	plan := f.createPlan(t, "Once", 5)
	off := false

	sub, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: plan.ID, AutoRenew: &off})
	require.NoError(t, err)

	f.clock.Advance(30 * 24 * time.Hour)
	expired, err := f.svc.Renew(system(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusExpired, expired.Status)

	_, err = f.svc.Renew(system(), sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotActive)

	_, err = f.svc.GetActiveByCustomer(context.Background(), customerID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
}

func TestRenewDueSweepsOnlyDueSubscriptions(t *testing.T) {
	f := newFixture(t)
	plan := f.createPlan(t, "Sweep", 5)

	due, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: plan.ID})
	require.NoError(t, err)

	f.clock.Advance(20 * 24 * time.Hour)
	notDue, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID + 1, PlanID: plan.ID})
	require.NoError(t, err)

	f.clock.Advance(15 * 24 * time.Hour)
	processed, err := f.svc.RenewDue(system(), f.clock.Now(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	renewed, err := f.svc.Get(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, due.Version+1, renewed.Version)

	untouched, err := f.svc.Get(context.Background(), notDue.ID)
	require.NoError(t, err)
	assert.Equal(t, notDue.Version, untouched.Version)

	processed, err = f.svc.RenewDue(system(), f.clock.Now(), 100)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestSetAutoRenew(t *testing.T) {
	f := newFixture(t)
	plan := f.createPlan(t, "Toggle", 5)

	sub, err := f.svc.Activate(sales(), subscriptiondomain.ActivateRequest{CustomerID: customerID, PlanID: plan.ID})
	require.NoError(t, err)
	require.True(t, sub.AutoRenew)

	updated, err := f.svc.SetAutoRenew(sales(), subscriptiondomain.SetAutoRenewRequest{
		SubscriptionID: sub.ID, AutoRenew: false, ExpectedVersion: sub.Version,
	})
	require.NoError(t, err)
	assert.False(t, updated.AutoRenew)
	assert.Equal(t, sub.Version+1, updated.Version)

	_, err = f.svc.SetAutoRenew(sales(), subscriptiondomain.SetAutoRenewRequest{
		SubscriptionID: sub.ID, AutoRenew: true, ExpectedVersion: sub.Version,
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

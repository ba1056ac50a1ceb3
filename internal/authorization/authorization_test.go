package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestCanRoleTable(t *testing.T) {
	svc := newTestService(t)

	allowed := map[string][]actor.Role{
		ActionQuoteCreate:          {actor.RoleSales, actor.RoleAdmin},
		ActionQuoteAccept:          {actor.RoleCustomer, actor.RoleAdmin},
		ActionQuoteReject:          {actor.RoleCustomer, actor.RoleAdmin},
		ActionQuoteExpire:          {actor.RoleSystem, actor.RoleAdmin},
		ActionDiscountRequest:      {actor.RoleSales, actor.RoleAdmin},
		ActionDiscountApprove:      {actor.RoleAdmin},
		ActionDiscountReject:       {actor.RoleAdmin},
		ActionInvoiceGenerate:      {actor.RoleSystem, actor.RoleFinance, actor.RoleAdmin},
		ActionInvoiceMarkPaid:      {actor.RoleFinance, actor.RoleAdmin},
		ActionInvoiceOverdue:       {actor.RoleSystem, actor.RoleAdmin},
		ActionTokensConsume:        {actor.RoleSystem, actor.RoleAdmin},
		ActionSubscriptionActivate: {actor.RoleSales, actor.RoleAdmin},
		ActionSubscriptionRenew:    {actor.RoleSystem, actor.RoleAdmin},
		ActionSubscriptionUpdate:   {actor.RoleSales, actor.RoleAdmin},
		ActionPlanManage:           {actor.RoleAdmin},
	}
	roles := []actor.Role{actor.RoleAdmin, actor.RoleSales, actor.RoleFinance, actor.RoleCustomer, actor.RoleSystem}

	for action, permitted := range allowed {
		for _, role := range roles {
			want := false
			for _, p := range permitted {
				if p == role {
					want = true
				}
			}
			assert.Equal(t, want, svc.Can(role, action), "role=%s action=%s", role, action)
		}
	}
}

func TestCanDeniesUnknown(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.Can(actor.RoleAdmin, "quote.delete"))
	assert.False(t, svc.Can(actor.RoleAdmin, "nonsense"))
	assert.False(t, svc.Can(actor.Role("owner"), ActionQuoteCreate))
	assert.False(t, svc.Can("", ActionQuoteCreate))
}

func TestAuthorize(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authorize(context.Background(), ActionQuoteCreate)
	assert.ErrorIs(t, err, ErrActorRequired)

	ctx := actor.WithActor(context.Background(), actor.Actor{Role: actor.RoleFinance, ID: 3})
	_, err = svc.Authorize(ctx, ActionQuoteCreate)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	a, err := svc.Authorize(ctx, ActionInvoiceMarkPaid)
	require.NoError(t, err)
	assert.Equal(t, actor.RoleFinance, a.Role)
}

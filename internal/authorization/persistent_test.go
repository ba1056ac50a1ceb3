package authorization_test

import (
	"testing"

	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/authorization"
	"github.com/smallbiznis/backoffice/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPersistentEnforcerSeedsOnce(t *testing.T) {
	db := testutil.NewDB(t)

	enforcer, err := authorization.NewPersistentEnforcer(db)
	require.NoError(t, err)

	var seeded int64
	require.NoError(t, db.Table("casbin_rule").Count(&seeded).Error)
	assert.Positive(t, seeded)

	_, err = authorization.NewPersistentEnforcer(db)
	require.NoError(t, err)

	var reloaded int64
	require.NoError(t, db.Table("casbin_rule").Count(&reloaded).Error)
	assert.Equal(t, seeded, reloaded)

	svc := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
	assert.True(t, svc.Can(actor.RoleAdmin, authorization.ActionDiscountApprove))
	assert.False(t, svc.Can(actor.RoleSales, authorization.ActionDiscountApprove))
}

func TestPersistentEnforcerKeepsOperatorRules(t *testing.T) {
	db := testutil.NewDB(t)

	enforcer, err := authorization.NewPersistentEnforcer(db)
	require.NoError(t, err)
	added, err := enforcer.AddPolicy("role:finance", authorization.ObjectQuote, authorization.ActionQuoteCreate)
	require.NoError(t, err)
	require.True(t, added)

	reloaded, err := authorization.NewPersistentEnforcer(db)
	require.NoError(t, err)

	svc := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: reloaded})
	assert.True(t, svc.Can(actor.RoleFinance, authorization.ActionQuoteCreate))
}

// Package authorization decides which actor roles may perform which actions.
package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectQuote        = "quote"
	ObjectDiscount     = "discount"
	ObjectInvoice      = "invoice"
	ObjectTokens       = "tokens"
	ObjectSubscription = "subscription"
	ObjectPlan         = "plan"
)

const (
	ActionQuoteCreate = "quote.create"
	ActionQuoteAccept = "quote.accept"
	ActionQuoteReject = "quote.reject"
	ActionQuoteExpire = "quote.expire"

	ActionDiscountRequest = "discount.request"
	ActionDiscountApprove = "discount.approve"
	ActionDiscountReject  = "discount.reject"

	ActionInvoiceGenerate = "invoice.generate"
	ActionInvoiceMarkPaid = "invoice.mark_paid"
	ActionInvoiceOverdue  = "invoice.mark_overdue"

	ActionTokensConsume = "tokens.consume"

	ActionSubscriptionActivate = "subscription.activate"
	ActionSubscriptionRenew    = "subscription.renew"
	ActionSubscriptionUpdate   = "subscription.update"

	ActionPlanManage = "plan.manage"
)

var (
	ErrForbidden     = apperror.New(apperror.KindForbidden, "action_forbidden")
	ErrActorRequired = apperror.New(apperror.KindForbidden, "actor_required")
)

// Service is the authorization gate every mutating operation passes first.
type Service interface {
	// Can reports whether role may perform action. Unknown roles or actions are denied.
	Can(role actor.Role, action string) bool
	// Authorize returns the context actor when it may perform action.
	Authorize(ctx context.Context, action string) (actor.Actor, error)
}

var Module = fx.Module("authorization",
	fx.Provide(NewPersistentEnforcer),
	fx.Provide(NewService),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer seeded with the role table.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewPersistentEnforcer loads policies from the casbin_rule table and adds
// any missing default rule. Rules added by operators are kept.
func NewPersistentEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, policy := range policies() {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Can(role actor.Role, action string) bool {
	action = strings.TrimSpace(action)
	object, ok := objectOf(action)
	if !ok || role == "" {
		return false
	}
	allowed, err := s.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		s.log.Warn("enforce failed", zap.String("action", action), zap.Error(err))
		return false
	}
	return allowed
}

func (s *ServiceImpl) Authorize(ctx context.Context, action string) (actor.Actor, error) {
	a, ok := actor.FromContext(ctx)
	if !ok {
		return actor.Actor{}, ErrActorRequired
	}
	if !s.Can(a.Role, action) {
		s.log.Debug("denied",
			zap.String("actor", a.Subject()),
			zap.String("action", action),
		)
		return a, ErrForbidden
	}
	return a, nil
}

func subject(role actor.Role) string {
	return "role:" + string(role)
}

func objectOf(action string) (string, bool) {
	object, _, ok := strings.Cut(action, ".")
	if !ok || object == "" {
		return "", false
	}
	return object, true
}

func policies() [][]string {
	grant := func(action string, roles ...actor.Role) [][]string {
		object, _ := objectOf(action)
		rules := make([][]string, 0, len(roles))
		for _, role := range roles {
			rules = append(rules, []string{subject(role), object, action})
		}
		return rules
	}

	var rules [][]string
	rules = append(rules, grant(ActionQuoteCreate, actor.RoleSales, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionQuoteAccept, actor.RoleCustomer, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionQuoteReject, actor.RoleCustomer, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionQuoteExpire, actor.RoleSystem, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionDiscountRequest, actor.RoleSales, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionDiscountApprove, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionDiscountReject, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionInvoiceGenerate, actor.RoleSystem, actor.RoleFinance, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionInvoiceMarkPaid, actor.RoleFinance, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionInvoiceOverdue, actor.RoleSystem, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionTokensConsume, actor.RoleSystem, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionSubscriptionActivate, actor.RoleSales, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionSubscriptionRenew, actor.RoleSystem, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionSubscriptionUpdate, actor.RoleSales, actor.RoleAdmin)...)
	rules = append(rules, grant(ActionPlanManage, actor.RoleAdmin)...)
	return rules
}

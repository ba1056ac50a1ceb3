package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/backoffice/internal/authorization"
	"github.com/smallbiznis/backoffice/internal/cache"
	"github.com/smallbiznis/backoffice/internal/clock"
	plandomain "github.com/smallbiznis/backoffice/internal/plan/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	planCacheSize = 512
	planCacheTTL  = 10 * time.Minute
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	authz authorization.Service
	repo  plandomain.Repository
	cache cache.Cache[snowflake.ID, plandomain.Plan]
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Authz authorization.Service
	Repo  plandomain.Repository
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,
		authz: p.Authz,
		repo:  p.Repo,
		cache: cache.NewLRU[snowflake.ID, plandomain.Plan](planCacheSize, planCacheTTL),
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreateRequest) (*plandomain.Plan, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionPlanManage); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, plandomain.ErrInvalidName
	}
	if req.Price < 0 {
		return nil, plandomain.ErrInvalidPrice
	}
	if req.TokenAmount < 0 {
		return nil, plandomain.ErrInvalidTokenAmount
	}
	interval := req.BillingIntervalDays
	if interval == 0 {
		interval = plandomain.DefaultBillingIntervalDays
	}
	if interval < 0 {
		return nil, plandomain.ErrInvalidBillingInterval
	}

	now := s.clock.Now()
	plan := &plandomain.Plan{
		ID:                  s.genID.Generate(),
		Name:                name,
		Slug:                slug.Make(name),
		Price:               req.Price,
		TokenAmount:         req.TokenAmount,
		BillingIntervalDays: interval,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, plandomain.ErrSlugTaken
		}
		return nil, fmt.Errorf("insert plan: %w", err)
	}

	s.log.Info("plan created", zap.String("plan_id", plan.ID.String()), zap.String("slug", plan.Slug))
	return plan, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	if cached, ok := s.cache.Get(id); ok {
		return &cached, nil
	}

	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	s.cache.Set(id, *plan)
	return plan, nil
}

func (s *Service) List(ctx context.Context, req plandomain.ListRequest) (plandomain.ListResponse, error) {
	filter := plandomain.ListFilter{
		ActiveOnly: req.ActiveOnly,
		Limit:      req.Limit() + 1,
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return plandomain.ListResponse{}, err
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return plandomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	plans, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return plandomain.ListResponse{}, fmt.Errorf("list plans: %w", err)
	}

	plans, pageInfo := pagination.Trim(plans, req.Limit(), func(p *plandomain.Plan) string { return p.ID.String() })
	return plandomain.ListResponse{PageInfo: pageInfo, Plans: plans}, nil
}

// Retire deactivates a plan. Retiring an already retired plan returns it unchanged.
func (s *Service) Retire(ctx context.Context, id snowflake.ID) (*plandomain.Plan, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionPlanManage); err != nil {
		return nil, err
	}

	if _, err := s.repo.Deactivate(ctx, s.db, id, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("deactivate plan: %w", err)
	}
	s.cache.Remove(id)

	return s.Get(ctx, id)
}

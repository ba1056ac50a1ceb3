package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/authorization"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/pricing"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	authz   authorization.Service
	events  billingeventdomain.Emitter
	metrics *metrics.BillingMetrics
	quotes  quotedomain.Service
	repo    discountdomain.Repository
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
	Quotes  quotedomain.Service
	Repo    discountdomain.Repository
}

func NewService(p ServiceParam) discountdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("discount.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		authz:   p.Authz,
		events:  p.Events,
		metrics: p.Metrics,
		quotes:  p.Quotes,
		repo:    p.Repo,
	}
}

func (s *Service) Request(ctx context.Context, req discountdomain.CreateRequest) (*discountdomain.DiscountRequest, error) {
	requester, err := s.authz.Authorize(ctx, authorization.ActionDiscountRequest)
	if err != nil {
		return nil, err
	}
	if err := pricing.ValidatePercent(req.DiscountPercent); err != nil {
		return nil, err
	}

	if req.QuoteID != nil {
		quote, err := s.quotes.Get(ctx, *req.QuoteID)
		if err != nil {
			return nil, err
		}
		if quote.Status != quotedomain.QuoteStatusPending {
			return nil, quotedomain.ErrNotPending
		}
	}

	now := s.clock.Now()
	request := &discountdomain.DiscountRequest{
		ID:              s.genID.Generate(),
		QuoteID:         req.QuoteID,
		RequestedBy:     requester.ID,
		DiscountPercent: req.DiscountPercent,
		Justification:   strings.TrimSpace(req.Justification),
		Status:          discountdomain.RequestStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, request); err != nil {
		return nil, fmt.Errorf("insert discount request: %w", err)
	}

	s.log.Info("discount requested",
		zap.String("request_id", request.ID.String()),
		zap.Int("discount_percent", request.DiscountPercent),
		zap.String("actor", requester.Subject()),
	)
	return request, nil
}

func (s *Service) Approve(ctx context.Context, req discountdomain.ApproveRequest) (*discountdomain.DiscountRequest, error) {
	approver, err := s.authz.Authorize(ctx, authorization.ActionDiscountApprove)
	if err != nil {
		return nil, err
	}

	request, err := s.pending(ctx, req.RequestID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	var quote *quotedomain.Quote
	if request.QuoteID != nil {
		quote, err = s.quotes.Get(ctx, *request.QuoteID)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if quote != nil {
			if _, err := s.quotes.ApplyDiscount(ctx, tx, quotedomain.ApplyDiscountRequest{
				QuoteID:         quote.ID,
				DiscountPercent: request.DiscountPercent,
				ExpectedVersion: quote.Version,
			}); err != nil {
				return err
			}
		}
		return s.decide(ctx, tx, request, discountdomain.RequestStatusApproved, approver, request.Notes, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DiscountDecision(string(discountdomain.RequestStatusApproved))
	s.log.Info("discount approved",
		zap.String("request_id", request.ID.String()),
		zap.String("actor", approver.Subject()),
	)
	return s.Get(ctx, request.ID)
}

func (s *Service) Reject(ctx context.Context, req discountdomain.RejectRequest) (*discountdomain.DiscountRequest, error) {
	rejecter, err := s.authz.Authorize(ctx, authorization.ActionDiscountReject)
	if err != nil {
		return nil, err
	}

	request, err := s.pending(ctx, req.RequestID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.decide(ctx, tx, request, discountdomain.RequestStatusRejected, rejecter, strings.TrimSpace(req.Notes), now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DiscountDecision(string(discountdomain.RequestStatusRejected))
	s.log.Info("discount rejected",
		zap.String("request_id", request.ID.String()),
		zap.String("actor", rejecter.Subject()),
	)
	return s.Get(ctx, request.ID)
}

func (s *Service) pending(ctx context.Context, id snowflake.ID, expectedVersion int64) (*discountdomain.DiscountRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != discountdomain.RequestStatusPending {
		return nil, discountdomain.ErrNotPending
	}
	if request.Version != expectedVersion {
		return nil, discountdomain.ErrVersionMismatch
	}
	return request, nil
}

func (s *Service) decide(ctx context.Context, tx *gorm.DB, request *discountdomain.DiscountRequest, status discountdomain.RequestStatus, decider actor.Actor, notes string, now time.Time) error {
	if !request.Status.CanTransitionTo(status) {
		return discountdomain.ErrNotPending
	}

	var decidedBy *snowflake.ID
	if decider.ID != 0 {
		id := decider.ID
		decidedBy = &id
	}

	ok, err := s.repo.Decide(ctx, tx, request.ID, request.Version, status, decidedBy, notes, now)
	if err != nil {
		return fmt.Errorf("update discount request: %w", err)
	}
	if !ok {
		return discountdomain.ErrVersionMismatch
	}

	eventType := billingeventdomain.EventDiscountApproved
	if status == discountdomain.RequestStatusRejected {
		eventType = billingeventdomain.EventDiscountRejected
	}
	payload := map[string]any{
		"discount_percent": request.DiscountPercent,
		"decided_by":       decider.Subject(),
	}
	if request.QuoteID != nil {
		payload["quote_id"] = request.QuoteID.String()
	}

	return s.events.Emit(ctx, tx, billingeventdomain.Event{
		Type:       eventType,
		EntityType: billingeventdomain.EntityDiscountRequest,
		EntityID:   request.ID,
		State:      string(status),
		Version:    request.Version + 1,
		OccurredAt: now,
		Payload:    payload,
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*discountdomain.DiscountRequest, error) {
	request, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find discount request: %w", err)
	}
	if request == nil {
		return nil, discountdomain.ErrRequestNotFound
	}
	return request, nil
}

func (s *Service) List(ctx context.Context, req discountdomain.ListRequest) (discountdomain.ListResponse, error) {
	filter := discountdomain.ListFilter{
		QuoteID: req.QuoteID,
		Limit:   req.Limit() + 1,
	}
	if req.Status != "" {
		status, ok := discountdomain.ParseStatus(req.Status)
		if !ok {
			return discountdomain.ListResponse{}, discountdomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return discountdomain.ListResponse{}, err
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return discountdomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	requests, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return discountdomain.ListResponse{}, fmt.Errorf("list discount requests: %w", err)
	}

	requests, pageInfo := pagination.Trim(requests, req.Limit(), func(r *discountdomain.DiscountRequest) string { return r.ID.String() })
	return discountdomain.ListResponse{PageInfo: pageInfo, Requests: requests}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/actor"
	"github.com/smallbiznis/backoffice/internal/apperror"
	"github.com/smallbiznis/backoffice/internal/authorization"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/pricing"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	"github.com/smallbiznis/backoffice/internal/sequence"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	authz    authorization.Service
	events   billingeventdomain.Emitter
	policy   *config.BillingConfigHolder
	metrics  *metrics.BillingMetrics
	invoices invoicedomain.Service
	repo     quotedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Authz    authorization.Service
	Events   billingeventdomain.Emitter
	Policy   *config.BillingConfigHolder
	Metrics  *metrics.BillingMetrics `optional:"true"`
	Invoices invoicedomain.Service
	Repo     quotedomain.Repository
}

func NewService(p ServiceParam) quotedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("quote.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		authz:    p.Authz,
		events:   p.Events,
		policy:   p.Policy,
		metrics:  p.Metrics,
		invoices: p.Invoices,
		repo:     p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req quotedomain.CreateRequest) (*quotedomain.Quote, error) {
	creator, err := s.authz.Authorize(ctx, authorization.ActionQuoteCreate)
	if err != nil {
		return nil, err
	}
	if req.CustomerID == 0 {
		return nil, quotedomain.ErrInvalidCustomer
	}

	totals, err := pricing.Compute(req.Items, 0, req.Tax)
	if err != nil {
		return nil, err
	}

	policy := s.policy.Get().Quotes
	now := s.clock.Now()
	expiry := now.AddDate(0, 0, policy.DefaultValidityDays)
	if req.ExpiryDate != nil {
		expiry = req.ExpiryDate.UTC()
	}
	if !expiry.After(now) {
		return nil, quotedomain.ErrInvalidExpiry
	}

	var quote *quotedomain.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := sequence.Next(ctx, tx, sequence.NameQuote, now)
		if err != nil {
			return err
		}
		number, err := sequence.Format(policy.NumberTemplate, now, seq)
		if err != nil {
			return fmt.Errorf("format quote number: %w", err)
		}

		quote = &quotedomain.Quote{
			ID:          s.genID.Generate(),
			QuoteNumber: number,
			CustomerID:  req.CustomerID,
			CreatedBy:   creator.ID,
			Items:       datatypes.NewJSONType(append([]pricing.LineItem(nil), req.Items...)),
			Subtotal:    totals.Subtotal,
			Tax:         totals.Tax,
			Total:       totals.Total,
			Status:      quotedomain.QuoteStatusPending,
			ExpiryDate:  expiry,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, quote); err != nil {
			return fmt.Errorf("insert quote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.QuoteTransition(string(quotedomain.QuoteStatusPending))
	s.log.Info("quote created",
		zap.String("quote_id", quote.ID.String()),
		zap.String("quote_number", quote.QuoteNumber),
		zap.Int64("total", quote.Total),
	)
	return quote, nil
}

func (s *Service) Accept(ctx context.Context, req quotedomain.DecisionRequest) (*quotedomain.AcceptResult, error) {
	decider, err := s.authz.Authorize(ctx, authorization.ActionQuoteAccept)
	if err != nil {
		return nil, err
	}

	quote, err := s.decidable(ctx, decider, req)
	if err != nil {
		return nil, err
	}

	autoInvoice := s.policy.Get().Quotes.AutoInvoiceOnAccept
	now := s.clock.Now()
	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accepted, err := s.decide(ctx, tx, quote, quotedomain.QuoteStatusAccepted, decider, now)
		if err != nil {
			return err
		}
		if !autoInvoice {
			return nil
		}

		invoice, err = s.invoices.GenerateFromQuote(ctx, tx, fromQuote(accepted))
		if err != nil && !errors.Is(err, apperror.ErrAlreadyProcessed) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.QuoteTransition(string(quotedomain.QuoteStatusAccepted))
	s.log.Info("quote accepted",
		zap.String("quote_id", quote.ID.String()),
		zap.String("actor", decider.Subject()),
		zap.Bool("invoiced", invoice != nil),
	)

	updated, err := s.Get(ctx, quote.ID)
	if err != nil {
		return nil, err
	}
	return &quotedomain.AcceptResult{Quote: updated, Invoice: invoice}, nil
}

func (s *Service) Reject(ctx context.Context, req quotedomain.DecisionRequest) (*quotedomain.Quote, error) {
	decider, err := s.authz.Authorize(ctx, authorization.ActionQuoteReject)
	if err != nil {
		return nil, err
	}

	quote, err := s.decidable(ctx, decider, req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.decide(ctx, tx, quote, quotedomain.QuoteStatusRejected, decider, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.QuoteTransition(string(quotedomain.QuoteStatusRejected))
	s.log.Info("quote rejected",
		zap.String("quote_id", quote.ID.String()),
		zap.String("actor", decider.Subject()),
	)
	return s.Get(ctx, quote.ID)
}

// decidable loads the quote and checks it can still be accepted or rejected by decider.
func (s *Service) decidable(ctx context.Context, decider actor.Actor, req quotedomain.DecisionRequest) (*quotedomain.Quote, error) {
	quote, err := s.Get(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	if decider.Role == actor.RoleCustomer && decider.ID != quote.CustomerID {
		return nil, quotedomain.ErrNotQuoteOwner
	}
	if quote.Status != quotedomain.QuoteStatusPending {
		return nil, quotedomain.ErrNotPending
	}
	if quote.ExpiredAt(s.clock.Now()) {
		return nil, quotedomain.ErrQuoteExpired
	}
	if quote.Version != req.ExpectedVersion {
		return nil, quotedomain.ErrVersionMismatch
	}
	return quote, nil
}

func (s *Service) decide(ctx context.Context, tx *gorm.DB, quote *quotedomain.Quote, status quotedomain.QuoteStatus, decider actor.Actor, now time.Time) (*quotedomain.Quote, error) {
	if !quote.Status.CanTransitionTo(status) {
		return nil, quotedomain.ErrNotPending
	}

	var decidedBy *snowflake.ID
	if decider.ID != 0 {
		id := decider.ID
		decidedBy = &id
	}

	ok, err := s.repo.Decide(ctx, tx, quote.ID, quote.Version, status, decidedBy, now)
	if err != nil {
		return nil, fmt.Errorf("update quote status: %w", err)
	}
	if !ok {
		return nil, quotedomain.ErrVersionMismatch
	}

	decided := *quote
	decided.Status = status
	decided.DecidedAt = &now
	decided.DecidedBy = decidedBy
	decided.Version++
	decided.UpdatedAt = now

	eventType := billingeventdomain.EventQuoteAccepted
	switch status {
	case quotedomain.QuoteStatusRejected:
		eventType = billingeventdomain.EventQuoteRejected
	case quotedomain.QuoteStatusExpired:
		eventType = billingeventdomain.EventQuoteExpired
	}
	if err := s.emit(ctx, tx, eventType, &decided); err != nil {
		return nil, err
	}
	return &decided, nil
}

func (s *Service) ApplyDiscount(ctx context.Context, tx *gorm.DB, req quotedomain.ApplyDiscountRequest) (*quotedomain.Quote, error) {
	if tx == nil {
		tx = s.db
	}

	quote, err := s.repo.FindByID(ctx, tx, req.QuoteID)
	if err != nil {
		return nil, fmt.Errorf("find quote: %w", err)
	}
	if quote == nil {
		return nil, quotedomain.ErrQuoteNotFound
	}
	if quote.Status != quotedomain.QuoteStatusPending {
		return nil, quotedomain.ErrNotPending
	}
	if quote.Version != req.ExpectedVersion {
		return nil, quotedomain.ErrVersionMismatch
	}

	totals, err := pricing.Compute(quote.Items.Data(), req.DiscountPercent, quote.Tax)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.repo.ApplyDiscount(ctx, tx, quote.ID, req.ExpectedVersion, req.DiscountPercent, totals, now)
	if err != nil {
		return nil, fmt.Errorf("apply quote discount: %w", err)
	}
	if !ok {
		return nil, quotedomain.ErrVersionMismatch
	}

	quote.DiscountPercent = req.DiscountPercent
	quote.Subtotal = totals.Subtotal
	quote.DiscountAmount = totals.DiscountAmount
	quote.Tax = totals.Tax
	quote.Total = totals.Total
	quote.Version++
	quote.UpdatedAt = now

	s.log.Info("quote discount applied",
		zap.String("quote_id", quote.ID.String()),
		zap.Int("discount_percent", req.DiscountPercent),
		zap.Int64("total", quote.Total),
	)
	return quote, nil
}

// ExpireSweep moves PENDING quotes whose expiry has passed to EXPIRED. Rows
// changed concurrently are skipped; running it again is harmless.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time, limit int) (int, error) {
	sweeper, err := s.authz.Authorize(ctx, authorization.ActionQuoteExpire)
	if err != nil {
		return 0, err
	}

	expirable, err := s.repo.ListExpirable(ctx, s.db, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expirable quotes: %w", err)
	}

	processed := 0
	for i := range expirable {
		quote := &expirable[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := s.decide(ctx, tx, quote, quotedomain.QuoteStatusExpired, actor.Actor{Role: sweeper.Role}, now)
			return err
		})
		if err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				s.log.Debug("skipping quote expiry", zap.String("quote_id", quote.ID.String()))
				continue
			}
			return processed, err
		}
		s.metrics.QuoteTransition(string(quotedomain.QuoteStatusExpired))
		processed++
	}
	return processed, nil
}

// ToInvoice returns the invoice for an accepted quote, generating it on first call.
func (s *Service) ToInvoice(ctx context.Context, quoteID snowflake.ID) (*invoicedomain.Invoice, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionInvoiceGenerate); err != nil {
		return nil, err
	}

	quote, err := s.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != quotedomain.QuoteStatusAccepted {
		return nil, quotedomain.ErrNotAccepted
	}

	invoice, err := s.invoices.GenerateFromQuote(ctx, nil, fromQuote(quote))
	if err != nil && !errors.Is(err, apperror.ErrAlreadyProcessed) {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*quotedomain.Quote, error) {
	quote, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find quote: %w", err)
	}
	if quote == nil {
		return nil, quotedomain.ErrQuoteNotFound
	}
	return quote, nil
}

func (s *Service) List(ctx context.Context, req quotedomain.ListRequest) (quotedomain.ListResponse, error) {
	filter := quotedomain.ListFilter{
		CustomerID: req.CustomerID,
		Limit:      req.Limit() + 1,
	}
	if req.Status != "" {
		status, ok := quotedomain.ParseStatus(req.Status)
		if !ok {
			return quotedomain.ListResponse{}, quotedomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return quotedomain.ListResponse{}, err
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return quotedomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	quotes, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return quotedomain.ListResponse{}, fmt.Errorf("list quotes: %w", err)
	}

	quotes, pageInfo := pagination.Trim(quotes, req.Limit(), func(q *quotedomain.Quote) string { return q.ID.String() })
	return quotedomain.ListResponse{PageInfo: pageInfo, Quotes: quotes}, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType string, quote *quotedomain.Quote) error {
	return s.events.Emit(ctx, tx, billingeventdomain.Event{
		Type:       eventType,
		EntityType: billingeventdomain.EntityQuote,
		EntityID:   quote.ID,
		State:      string(quote.Status),
		Version:    quote.Version,
		OccurredAt: s.clock.Now(),
		Payload: map[string]any{
			"quote_number": quote.QuoteNumber,
			"customer_id":  quote.CustomerID.String(),
			"total":        quote.Total,
		},
	})
}

func fromQuote(quote *quotedomain.Quote) invoicedomain.FromQuoteRequest {
	return invoicedomain.FromQuoteRequest{
		QuoteID:       quote.ID,
		CustomerID:    quote.CustomerID,
		QuoteAccepted: quote.Status == quotedomain.QuoteStatusAccepted,
		Items:         quote.Items.Data(),
		Totals:        quote.Totals(),
	}
}

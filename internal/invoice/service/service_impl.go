package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/apperror"
	"github.com/smallbiznis/backoffice/internal/authorization"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/pricing"
	"github.com/smallbiznis/backoffice/internal/sequence"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	authz   authorization.Service
	events  billingeventdomain.Emitter
	policy  *config.BillingConfigHolder
	metrics *metrics.BillingMetrics
	repo    invoicedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Authz   authorization.Service
	Events  billingeventdomain.Emitter
	Policy  *config.BillingConfigHolder
	Metrics *metrics.BillingMetrics `optional:"true"`
	Repo    invoicedomain.Repository
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		authz:   p.Authz,
		events:  p.Events,
		policy:  p.Policy,
		metrics: p.Metrics,
		repo:    p.Repo,
	}
}

func (s *Service) GenerateFromQuote(ctx context.Context, tx *gorm.DB, req invoicedomain.FromQuoteRequest) (*invoicedomain.Invoice, error) {
	if !req.QuoteAccepted {
		return nil, invoicedomain.ErrQuoteNotAccepted
	}

	var (
		result   *invoicedomain.Invoice
		existing bool
	)
	run := func(tx *gorm.DB) error {
		found, err := s.repo.FindByQuoteID(ctx, tx, req.QuoteID)
		if err != nil {
			return fmt.Errorf("find invoice by quote: %w", err)
		}
		if found != nil {
			result, existing = found, true
			return nil
		}

		quoteID := req.QuoteID
		invoice, err := s.build(ctx, tx, req.CustomerID, &quoteID, req.Items, req.Totals)
		if err != nil {
			return err
		}
		inserted, err := s.repo.Insert(ctx, tx, invoice)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if !inserted {
			found, err := s.repo.FindByQuoteID(ctx, tx, req.QuoteID)
			if err != nil {
				return fmt.Errorf("find invoice by quote: %w", err)
			}
			result, existing = found, true
			return nil
		}

		result = invoice
		return s.emit(ctx, tx, billingeventdomain.EventInvoiceGenerated, invoice)
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
	if existing {
		return result, invoicedomain.ErrAlreadyInvoiced
	}

	s.metrics.InvoiceTransition(string(invoicedomain.InvoiceStatusPending))
	s.log.Info("invoice generated from quote",
		zap.String("invoice_id", result.ID.String()),
		zap.String("invoice_number", result.InvoiceNumber),
		zap.String("quote_id", req.QuoteID.String()),
	)
	return result, nil
}

func (s *Service) GenerateStandalone(ctx context.Context, req invoicedomain.StandaloneRequest) (*invoicedomain.Invoice, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionInvoiceGenerate); err != nil {
		return nil, err
	}
	if req.CustomerID == 0 {
		return nil, invoicedomain.ErrInvalidCustomer
	}

	totals, err := pricing.Compute(req.Items, 0, req.Tax)
	if err != nil {
		return nil, err
	}

	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		built, err := s.build(ctx, tx, req.CustomerID, nil, req.Items, totals)
		if err != nil {
			return err
		}
		if _, err := s.repo.Insert(ctx, tx, built); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		invoice = built
		return s.emit(ctx, tx, billingeventdomain.EventInvoiceGenerated, built)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceTransition(string(invoicedomain.InvoiceStatusPending))
	s.log.Info("standalone invoice generated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)
	return invoice, nil
}

func (s *Service) build(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, quoteID *snowflake.ID, items []pricing.LineItem, totals pricing.Totals) (*invoicedomain.Invoice, error) {
	policy := s.policy.Get().Invoices
	now := s.clock.Now()

	seq, err := sequence.Next(ctx, tx, sequence.NameInvoice, now)
	if err != nil {
		return nil, err
	}
	number, err := sequence.Format(policy.NumberTemplate, now, seq)
	if err != nil {
		return nil, fmt.Errorf("format invoice number: %w", err)
	}

	return &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		InvoiceNumber:  number,
		QuoteID:        quoteID,
		CustomerID:     customerID,
		Items:          datatypes.NewJSONType(append([]pricing.LineItem(nil), items...)),
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		Tax:            totals.Tax,
		Total:          totals.Total,
		Status:         invoicedomain.InvoiceStatusPending,
		DueDate:        now.AddDate(0, 0, policy.PaymentTermDays),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Service) MarkPaid(ctx context.Context, req invoicedomain.MarkPaidRequest) (*invoicedomain.Invoice, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionInvoiceMarkPaid); err != nil {
		return nil, err
	}
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	if req.PaymentReference == "" {
		return nil, invoicedomain.ErrPaymentReferenceRequired
	}

	invoice, err := s.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.CanTransitionTo(invoicedomain.InvoiceStatusPaid) {
		return nil, invoicedomain.ErrAlreadyPaid
	}
	if invoice.Version != req.ExpectedVersion {
		return nil, invoicedomain.ErrVersionMismatch
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkPaid(ctx, tx, invoice.ID, req.ExpectedVersion, req.PaymentReference, now)
		if err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		if !ok {
			return invoicedomain.ErrVersionMismatch
		}

		paid := *invoice
		paid.Status = invoicedomain.InvoiceStatusPaid
		paid.PaidAt = &now
		paid.PaymentReference = &req.PaymentReference
		paid.Version++
		return s.emit(ctx, tx, billingeventdomain.EventInvoicePaid, &paid)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceTransition(string(invoicedomain.InvoiceStatusPaid))
	s.log.Info("invoice paid", zap.String("invoice_id", invoice.ID.String()))
	return s.Get(ctx, invoice.ID)
}

// OverdueSweep moves PENDING invoices past their due date to OVERDUE.
// Rows changed concurrently are skipped.
func (s *Service) OverdueSweep(ctx context.Context, now time.Time, limit int) (int, error) {
	if _, err := s.authz.Authorize(ctx, authorization.ActionInvoiceOverdue); err != nil {
		return 0, err
	}

	pastDue, err := s.repo.ListPastDue(ctx, s.db, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list past due invoices: %w", err)
	}

	processed := 0
	for i := range pastDue {
		invoice := pastDue[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.repo.MarkOverdue(ctx, tx, invoice.ID, invoice.Version, now)
			if err != nil {
				return fmt.Errorf("mark invoice overdue: %w", err)
			}
			if !ok {
				return invoicedomain.ErrVersionMismatch
			}

			invoice.Status = invoicedomain.InvoiceStatusOverdue
			invoice.Version++
			return s.emit(ctx, tx, billingeventdomain.EventInvoiceOverdue, &invoice)
		})
		if err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				s.log.Debug("skipping overdue invoice", zap.String("invoice_id", invoice.ID.String()))
				continue
			}
			return processed, err
		}
		s.metrics.InvoiceTransition(string(invoicedomain.InvoiceStatusOverdue))
		processed++
	}
	return processed, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	filter := invoicedomain.ListFilter{
		CustomerID: req.CustomerID,
		Limit:      req.Limit() + 1,
	}
	if req.Status != "" {
		status, ok := invoicedomain.ParseStatus(req.Status)
		if !ok {
			return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListResponse{}, err
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}

	invoices, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListResponse{}, fmt.Errorf("list invoices: %w", err)
	}

	invoices, pageInfo := pagination.Trim(invoices, req.Limit(), func(i *invoicedomain.Invoice) string { return i.ID.String() })
	return invoicedomain.ListResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType string, invoice *invoicedomain.Invoice) error {
	payload := map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"customer_id":    invoice.CustomerID.String(),
		"total":          invoice.Total,
		"due_date":       invoice.DueDate,
	}
	if invoice.QuoteID != nil {
		payload["quote_id"] = invoice.QuoteID.String()
	}
	if invoice.PaymentReference != nil {
		payload["payment_reference"] = *invoice.PaymentReference
	}

	return s.events.Emit(ctx, tx, billingeventdomain.Event{
		Type:       eventType,
		EntityType: billingeventdomain.EntityInvoice,
		EntityID:   invoice.ID,
		State:      string(invoice.Status),
		Version:    invoice.Version,
		OccurredAt: s.clock.Now(),
		Payload:    payload,
	})
}

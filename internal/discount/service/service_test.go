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
	"github.com/smallbiznis/backoffice/internal/config"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
	"github.com/smallbiznis/backoffice/internal/discount/repository"
	invoicerepo "github.com/smallbiznis/backoffice/internal/invoice/repository"
	invoicesvc "github.com/smallbiznis/backoffice/internal/invoice/service"
	"github.com/smallbiznis/backoffice/internal/pricing"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	quoterepo "github.com/smallbiznis/backoffice/internal/quote/repository"
	quotesvc "github.com/smallbiznis/backoffice/internal/quote/service"
	"github.com/smallbiznis/backoffice/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	customerID = snowflake.ID(901)
	adminID    = snowflake.ID(1)
	salesID    = snowflake.ID(21)
)

type fixture struct {
	db     *gorm.DB
	quotes quotedomain.Service
	svc    discountdomain.Service
	events billingeventdomain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.Provide())
}

func newFixtureWithRepo(t *testing.T, repo discountdomain.Repository) fixture {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Epoch)
	authz := testutil.NewAuthz(t)
	events := billingeventrepo.Provide()
	emitter := billingeventsvc.NewEmitter(billingeventsvc.EmitterParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: events,
	})
	policy := config.NewStaticBillingConfig(config.DefaultBillingConfig())

	invoices := invoicesvc.NewService(invoicesvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Authz: authz, Events: emitter, Policy: policy, Repo: invoicerepo.Provide(),
	})
	quotes := quotesvc.NewService(quotesvc.ServiceParam{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Authz: authz, Events: emitter, Policy: policy, Invoices: invoices, Repo: quoterepo.Provide(),
	})
	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Authz:  authz,
		Events: emitter,
		Quotes: quotes,
		Repo:   repo,
	})
	return fixture{db: db, quotes: quotes, svc: svc, events: events}
}

func sales() context.Context {
	return testutil.As(actor.RoleSales, salesID)
}

func admin() context.Context {
	return testutil.As(actor.RoleAdmin, adminID)
}

func (f fixture) createQuote(t *testing.T) *quotedomain.Quote {
	t.Helper()
	quote, err := f.quotes.Create(sales(), quotedomain.CreateRequest{
		CustomerID: customerID,
		Items:      []pricing.LineItem{{Name: "License", UnitPrice: 1000, Quantity: 2}},
		Tax:        50,
	})
	require.NoError(t, err)
	return quote
}

func TestApproveAppliesDiscountToQuote(t *testing.T) {
	f := newFixture(t)
	quote := f.createQuote(t)

	request, err := f.svc.Request(sales(), discountdomain.CreateRequest{
		QuoteID:         &quote.ID,
		DiscountPercent: 10,
		Justification:   "multi-year commitment",
	})
	require.NoError(t, err)
	assert.Equal(t, discountdomain.RequestStatusPending, request.Status)
	assert.Equal(t, salesID, request.RequestedBy)

	approved, err := f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: request.ID, ExpectedVersion: request.Version})
	require.NoError(t, err)
	assert.Equal(t, discountdomain.RequestStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, adminID, *approved.ApprovedBy)
	assert.NotNil(t, approved.DecidedAt)

	repriced, err := f.quotes.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), repriced.Subtotal)
	assert.Equal(t, int64(200), repriced.DiscountAmount)
	assert.Equal(t, int64(1850), repriced.Total)

	events, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntityDiscountRequest, request.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, billingeventdomain.EventDiscountApproved, events[0].EventType)
}

func TestApproveAfterQuoteRejectedLeavesRequestPending(t *testing.T) {
	f := newFixture(t)
	quote := f.createQuote(t)

	request, err := f.svc.Request(sales(), discountdomain.CreateRequest{QuoteID: &quote.ID, DiscountPercent: 15})
	require.NoError(t, err)

	_, err = f.quotes.Reject(testutil.As(actor.RoleCustomer, customerID), quotedomain.DecisionRequest{
		QuoteID: quote.ID, ExpectedVersion: quote.Version,
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: request.ID, ExpectedVersion: request.Version})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	stored, err := f.svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, discountdomain.RequestStatusPending, stored.Status)
	assert.Equal(t, request.Version, stored.Version)
	assert.Nil(t, stored.ApprovedBy)

	events, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntityDiscountRequest, request.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

// racedRepo loses every Decide CAS, as when another admin decided first.
type racedRepo struct {
	discountdomain.Repository
}

func (racedRepo) Decide(context.Context, *gorm.DB, snowflake.ID, int64, discountdomain.RequestStatus, *snowflake.ID, string, time.Time) (bool, error) {
	return false, nil
}

func TestApproveRollsBackQuoteWhenDecisionLoses(t *testing.T) {
	f := newFixtureWithRepo(t, racedRepo{Repository: repository.Provide()})
	quote := f.createQuote(t)

	request, err := f.svc.Request(sales(), discountdomain.CreateRequest{QuoteID: &quote.ID, DiscountPercent: 25})
	require.NoError(t, err)

	quoteEvents, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntityQuote, quote.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: request.ID, ExpectedVersion: request.Version})
	assert.ErrorIs(t, err, discountdomain.ErrVersionMismatch)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	stored, err := f.quotes.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.DiscountPercent)
	assert.Equal(t, int64(0), stored.DiscountAmount)
	assert.Equal(t, quote.Total, stored.Total)
	assert.Equal(t, quote.Version, stored.Version)

	pending, err := f.svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, discountdomain.RequestStatusPending, pending.Status)

	requestEvents, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntityDiscountRequest, request.ID)
	require.NoError(t, err)
	assert.Empty(t, requestEvents)

	after, err := f.events.ListByEntity(context.Background(), f.db, billingeventdomain.EntityQuote, quote.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(quoteEvents))
}

func TestRejectRecordsNotesAndIsTerminal(t *testing.T) {
	f := newFixture(t)

	request, err := f.svc.Request(sales(), discountdomain.CreateRequest{DiscountPercent: 40})
	require.NoError(t, err)
	assert.Nil(t, request.QuoteID)

	rejected, err := f.svc.Reject(admin(), discountdomain.RejectRequest{
		RequestID: request.ID, Notes: "  margin too thin ", ExpectedVersion: request.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, discountdomain.RequestStatusRejected, rejected.Status)
	assert.Equal(t, "margin too thin", rejected.Notes)
	require.NotNil(t, rejected.ApprovedBy)
	assert.Equal(t, adminID, *rejected.ApprovedBy)

	_, err = f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: request.ID, ExpectedVersion: rejected.Version})
	assert.ErrorIs(t, err, discountdomain.ErrNotPending)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.svc.Reject(admin(), discountdomain.RejectRequest{RequestID: request.ID, ExpectedVersion: rejected.Version})
	assert.ErrorIs(t, err, discountdomain.ErrNotPending)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Request(sales(), discountdomain.CreateRequest{DiscountPercent: 101})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.Request(sales(), discountdomain.CreateRequest{DiscountPercent: -1})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	missing := snowflake.ID(4040)
	_, err = f.svc.Request(sales(), discountdomain.CreateRequest{QuoteID: &missing, DiscountPercent: 5})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	quote := f.createQuote(t)
	_, err = f.quotes.Accept(admin(), quotedomain.DecisionRequest{QuoteID: quote.ID, ExpectedVersion: quote.Version})
	require.NoError(t, err)
	_, err = f.svc.Request(sales(), discountdomain.CreateRequest{QuoteID: &quote.ID, DiscountPercent: 5})
	assert.ErrorIs(t, err, quotedomain.ErrNotPending)

	_, err = f.svc.Request(testutil.As(actor.RoleFinance, 3), discountdomain.CreateRequest{DiscountPercent: 5})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestOnlyAdminDecides(t *testing.T) {
	f := newFixture(t)

	request, err := f.svc.Request(sales(), discountdomain.CreateRequest{DiscountPercent: 5})
	require.NoError(t, err)

	_, err = f.svc.Approve(sales(), discountdomain.ApproveRequest{RequestID: request.ID, ExpectedVersion: request.Version})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: request.ID, ExpectedVersion: request.Version + 1})
	assert.ErrorIs(t, err, discountdomain.ErrVersionMismatch)
}

func TestMultipleRequestsPerQuote(t *testing.T) {
	f := newFixture(t)
	quote := f.createQuote(t)

	first, err := f.svc.Request(sales(), discountdomain.CreateRequest{QuoteID: &quote.ID, DiscountPercent: 5})
	require.NoError(t, err)
	second, err := f.svc.Request(sales(), discountdomain.CreateRequest{QuoteID: &quote.ID, DiscountPercent: 10})
	require.NoError(t, err)

	_, err = f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: first.ID, ExpectedVersion: first.Version})
	require.NoError(t, err)
	_, err = f.svc.Approve(admin(), discountdomain.ApproveRequest{RequestID: second.ID, ExpectedVersion: second.Version})
	require.NoError(t, err)

	repriced, err := f.quotes.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, repriced.DiscountPercent)
	assert.Equal(t, quote.Version+2, repriced.Version)

	list, err := f.svc.List(context.Background(), discountdomain.ListRequest{QuoteID: quote.ID, Status: "APPROVED"})
	require.NoError(t, err)
	assert.Len(t, list.Requests, 2)
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/backoffice/internal/config"
	discountdomain "github.com/smallbiznis/backoffice/internal/discount/domain"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	obslogger "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/backoffice/internal/observability/tracing"
	plandomain "github.com/smallbiznis/backoffice/internal/plan/domain"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	tokenbalancedomain "github.com/smallbiznis/backoffice/internal/tokenbalance/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(RunHTTP),
)

type EngineParams struct {
	fx.In

	Log      *zap.Logger
	Registry *prometheus.Registry `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Base:            p.Log.Named("http"),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if p.Registry != nil {
		r.GET("/metrics", gin.WrapH(obsmetrics.Handler(p.Registry)))
	}

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	planSvc         plandomain.Service
	quoteSvc        quotedomain.Service
	discountSvc     discountdomain.Service
	invoiceSvc      invoicedomain.Service
	subscriptionSvc subscriptiondomain.Service
	tokenSvc        tokenbalancedomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	PlanSvc         plandomain.Service
	QuoteSvc        quotedomain.Service
	DiscountSvc     discountdomain.Service
	InvoiceSvc      invoicedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	TokenSvc        tokenbalancedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		planSvc:         p.PlanSvc,
		quoteSvc:        p.QuoteSvc,
		discountSvc:     p.DiscountSvc,
		invoiceSvc:      p.InvoiceSvc,
		subscriptionSvc: p.SubscriptionSvc,
		tokenSvc:        p.TokenSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", ActorFromHeaders())

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)
	api.POST("/plans", s.CreatePlan)
	api.GET("/plans/:id", s.GetPlanByID)
	api.POST("/plans/:id/retire", s.RetirePlan)

	// -------- Quotes --------
	api.GET("/quotes", s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:id", s.GetQuoteByID)
	api.POST("/quotes/:id/accept", s.AcceptQuote)
	api.POST("/quotes/:id/reject", s.RejectQuote)
	api.POST("/quotes/:id/invoice", s.InvoiceQuote)
	api.GET("/quotes/:id/discount-requests", StaffOnly(), s.ListQuoteDiscountRequests)

	// -------- Discount requests --------
	discounts := api.Group("/discount-requests", StaffOnly())
	discounts.GET("", s.ListDiscountRequests)
	discounts.POST("", s.CreateDiscountRequest)
	discounts.GET("/:id", s.GetDiscountRequestByID)
	discounts.POST("/:id/approve", s.ApproveDiscountRequest)
	discounts.POST("/:id/reject", s.RejectDiscountRequest)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/pay", s.PayInvoice)

	// -------- Subscriptions --------
	api.POST("/subscriptions", s.ActivateSubscription)
	api.GET("/subscriptions/:id", s.GetSubscriptionByID)
	api.PATCH("/subscriptions/:id", s.UpdateSubscription)
	api.POST("/subscriptions/:id/renew", s.RenewSubscription)
	api.GET("/customers/:id/subscription", s.GetActiveSubscription)

	// -------- Tokens --------
	api.GET("/subscriptions/:id/tokens", s.GetTokenBalance)
	api.GET("/subscriptions/:id/tokens/history", s.ListTokenHistory)
	api.POST("/subscriptions/:id/tokens/consume", s.ConsumeTokens)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrRouteNotFound)
	})
}

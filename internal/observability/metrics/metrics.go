package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config labels every series with the running service.
type Config struct {
	ServiceName string
	Environment string
}

const namespace = "backoffice"

// NewRegistry returns the registry for billing and scheduler series.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler serves the registry together with the default gatherer, which carries
// the runtime collectors and the gorm connection pool series.
func Handler(registry *prometheus.Registry) http.Handler {
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, registry}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

func constLabels(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = namespace
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

// BillingMetrics counts workflow transitions and ledger outcomes.
type BillingMetrics struct {
	quoteTransitions   *prometheus.CounterVec
	discountDecisions  *prometheus.CounterVec
	invoiceTransitions *prometheus.CounterVec
	tokenConsumes      *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
}

func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	labels := constLabels(cfg)
	m := &BillingMetrics{
		quoteTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "quote_transitions_total",
			Help:        "Quote status transitions by target status.",
			ConstLabels: labels,
		}, []string{"status"}),
		discountDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "discount_decisions_total",
			Help:        "Discount request decisions by outcome.",
			ConstLabels: labels,
		}, []string{"status"}),
		invoiceTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "invoice_transitions_total",
			Help:        "Invoice status transitions by target status.",
			ConstLabels: labels,
		}, []string{"status"}),
		tokenConsumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "token_consume_total",
			Help:        "Token consume attempts by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_published_total",
			Help:        "Outbox events relayed by event type.",
			ConstLabels: labels,
		}, []string{"event_type"}),
	}
	if registerer != nil {
		registerer.MustRegister(
			m.quoteTransitions,
			m.discountDecisions,
			m.invoiceTransitions,
			m.tokenConsumes,
			m.eventsPublished,
		)
	}
	return m
}

func (m *BillingMetrics) QuoteTransition(status string) {
	if m == nil {
		return
	}
	m.quoteTransitions.WithLabelValues(status).Inc()
}

func (m *BillingMetrics) DiscountDecision(status string) {
	if m == nil {
		return
	}
	m.discountDecisions.WithLabelValues(status).Inc()
}

func (m *BillingMetrics) InvoiceTransition(status string) {
	if m == nil {
		return
	}
	m.invoiceTransitions.WithLabelValues(status).Inc()
}

// TokenConsume records "ok", "insufficient_balance", "conflict" or "error".
func (m *BillingMetrics) TokenConsume(outcome string) {
	if m == nil {
		return
	}
	m.tokenConsumes.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

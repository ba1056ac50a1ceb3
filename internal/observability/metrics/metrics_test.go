package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/backoffice/internal/apperror"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "forbidden", err: apperror.ErrForbidden, want: SchedulerJobReasonForbidden},
		{name: "conflict", err: fmt.Errorf("expire: %w", apperror.New(apperror.KindConflict, "quote_version_mismatch")), want: SchedulerJobReasonConflict},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSchedulerMetrics(registry, Config{ServiceName: "backoffice", Environment: "test"})

	m.IncJobRun("expire_quotes")
	m.AddBatchProcessed("expire_quotes", 3)
	m.AddBatchProcessed("expire_quotes", 0)
	m.IncJobError("expire_quotes", context.DeadlineExceeded)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("expire_quotes")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("expire_quotes")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("expire_quotes", SchedulerJobReasonDeadlineExceeded)))
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	assert.NotPanics(t, func() {
		m.QuoteTransition("ACCEPTED")
		m.TokenConsume("ok")
	})
}

func TestHandlerExposesBillingSeries(t *testing.T) {
	registry := NewRegistry()
	m := NewBillingMetrics(registry, Config{ServiceName: "backoffice", Environment: "test"})
	m.InvoiceTransition("PAID")

	w := httptest.NewRecorder()
	Handler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `backoffice_invoice_transitions_total{env="test",service="backoffice",status="PAID"} 1`))
}

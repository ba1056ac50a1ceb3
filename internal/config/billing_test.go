package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultBillingConfigIsValid(t *testing.T) {
	cfg := DefaultBillingConfig()
	require.NoError(t, ValidateBillingConfig(cfg))
	assert.Equal(t, 30, cfg.Invoices.PaymentTermDays)
	assert.True(t, cfg.Quotes.AutoInvoiceOnAccept)
}

func TestValidateBillingConfigRejectsBadSchedule(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.Scheduler.RelayEventsSchedule = "every now and then"
	assert.Error(t, ValidateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.Scheduler.BatchSize = 0
	assert.Error(t, ValidateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.Invoices.NumberTemplate = "INV-{SEQ6"
	assert.Error(t, ValidateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.Quotes.NumberTemplate = "Q-{YYYY}"
	assert.Error(t, ValidateBillingConfig(cfg))
}

func TestNewBillingConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`billing:
  invoices:
    paymentTermDays: 14
  quotes:
    autoInvoiceOnAccept: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))
	t.Chdir(dir)

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 14, cfg.Invoices.PaymentTermDays)
	assert.False(t, cfg.Quotes.AutoInvoiceOnAccept)
	assert.Equal(t, 30, cfg.Quotes.DefaultValidityDays)
	assert.Equal(t, 100, cfg.Scheduler.BatchSize)
}

func TestNewBillingConfigHolderFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBillingConfig(), holder.Get())
}

func TestNewBillingConfigHolderEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BACKOFFICE_BILLING_INVOICES_PAYMENTTERMDAYS", "7")

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 7, holder.Get().Invoices.PaymentTermDays)
}

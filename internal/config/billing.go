package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/backoffice/internal/sequence"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is engine policy that can change without a restart.
type BillingConfig struct {
	Invoices  InvoicePolicy   `mapstructure:"invoices"`
	Quotes    QuotePolicy     `mapstructure:"quotes"`
	Scheduler SchedulerPolicy `mapstructure:"scheduler"`
}

type InvoicePolicy struct {
	PaymentTermDays int    `mapstructure:"paymentTermDays"`
	NumberTemplate  string `mapstructure:"numberTemplate"`
}

type QuotePolicy struct {
	AutoInvoiceOnAccept bool   `mapstructure:"autoInvoiceOnAccept"`
	DefaultValidityDays int    `mapstructure:"defaultValidityDays"`
	NumberTemplate      string `mapstructure:"numberTemplate"`
}

type SchedulerPolicy struct {
	BatchSize                  int    `mapstructure:"batchSize"`
	ExpireQuotesSchedule       string `mapstructure:"expireQuotesSchedule"`
	OverdueInvoicesSchedule    string `mapstructure:"overdueInvoicesSchedule"`
	RenewSubscriptionsSchedule string `mapstructure:"renewSubscriptionsSchedule"`
	RelayEventsSchedule        string `mapstructure:"relayEventsSchedule"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Invoices: InvoicePolicy{
			PaymentTermDays: 30,
			NumberTemplate:  sequence.DefaultInvoiceTemplate,
		},
		Quotes: QuotePolicy{
			AutoInvoiceOnAccept: true,
			DefaultValidityDays: 30,
			NumberTemplate:      sequence.DefaultQuoteTemplate,
		},
		Scheduler: SchedulerPolicy{
			BatchSize:                  100,
			ExpireQuotesSchedule:       "@every 1m",
			OverdueInvoicesSchedule:    "@every 5m",
			RenewSubscriptionsSchedule: "@every 5m",
			RelayEventsSchedule:        "@every 5s",
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfig returns a holder that never reloads.
func NewStaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("billing-config")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/backoffice")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setBillingDefaults(v, DefaultBillingConfig())

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfig(cfg)
	if !fileLoaded {
		log.Info("billing config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// decodeBillingConfig unmarshals the merged settings so defaults fill keys absent from the file.
func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var root struct {
		Billing BillingConfig `mapstructure:"billing"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return BillingConfig{}, err
	}
	return root.Billing, nil
}

func setBillingDefaults(v *viper.Viper, d BillingConfig) {
	v.SetDefault("billing.invoices.paymentTermDays", d.Invoices.PaymentTermDays)
	v.SetDefault("billing.invoices.numberTemplate", d.Invoices.NumberTemplate)
	v.SetDefault("billing.quotes.autoInvoiceOnAccept", d.Quotes.AutoInvoiceOnAccept)
	v.SetDefault("billing.quotes.defaultValidityDays", d.Quotes.DefaultValidityDays)
	v.SetDefault("billing.quotes.numberTemplate", d.Quotes.NumberTemplate)
	v.SetDefault("billing.scheduler.batchSize", d.Scheduler.BatchSize)
	v.SetDefault("billing.scheduler.expireQuotesSchedule", d.Scheduler.ExpireQuotesSchedule)
	v.SetDefault("billing.scheduler.overdueInvoicesSchedule", d.Scheduler.OverdueInvoicesSchedule)
	v.SetDefault("billing.scheduler.renewSubscriptionsSchedule", d.Scheduler.RenewSubscriptionsSchedule)
	v.SetDefault("billing.scheduler.relayEventsSchedule", d.Scheduler.RelayEventsSchedule)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func ValidateBillingConfig(cfg BillingConfig) error {
	if cfg.Invoices.PaymentTermDays < 0 {
		return errors.New("billing.invoices.paymentTermDays cannot be negative")
	}
	if cfg.Quotes.DefaultValidityDays <= 0 {
		return errors.New("billing.quotes.defaultValidityDays must be positive")
	}
	for key, template := range map[string]string{
		"invoices.numberTemplate": cfg.Invoices.NumberTemplate,
		"quotes.numberTemplate":   cfg.Quotes.NumberTemplate,
	} {
		if err := sequence.ValidateTemplate(template); err != nil {
			return errors.New("billing." + key + " is not a valid number template")
		}
	}
	if cfg.Scheduler.BatchSize <= 0 {
		return errors.New("billing.scheduler.batchSize must be positive")
	}
	for key, spec := range map[string]string{
		"expireQuotesSchedule":       cfg.Scheduler.ExpireQuotesSchedule,
		"overdueInvoicesSchedule":    cfg.Scheduler.OverdueInvoicesSchedule,
		"renewSubscriptionsSchedule": cfg.Scheduler.RenewSubscriptionsSchedule,
		"relayEventsSchedule":        cfg.Scheduler.RelayEventsSchedule,
	} {
		if _, err := cronParser.Parse(spec); err != nil {
			return errors.New("billing.scheduler." + key + " is not a valid cron spec")
		}
	}
	return nil
}

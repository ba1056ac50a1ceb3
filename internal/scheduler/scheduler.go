package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/backoffice/internal/actor"
	billingeventdomain "github.com/smallbiznis/backoffice/internal/billingevent/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	invoicedomain "github.com/smallbiznis/backoffice/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	quotedomain "github.com/smallbiznis/backoffice/internal/quote/domain"
	subscriptiondomain "github.com/smallbiznis/backoffice/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireQuotes       = "expire_quotes"
	JobOverdueInvoices    = "overdue_invoices"
	JobRenewSubscriptions = "renew_subscriptions"
	JobRelayEvents        = "relay_events"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Policy        *config.BillingConfigHolder
	Quotes        quotedomain.Service
	Invoices      invoicedomain.Service
	Subscriptions subscriptiondomain.Service
	Relay         billingeventdomain.Relay
	Redis         *redis.Client                `optional:"true"`
	Metrics       *obsmetrics.SchedulerMetrics `optional:"true"`
	Config        Config                       `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	policy        *config.BillingConfigHolder
	quotes        quotedomain.Service
	invoices      invoicedomain.Service
	subscriptions subscriptiondomain.Service
	relay         billingeventdomain.Relay
	locker        *Locker
	metrics       *obsmetrics.SchedulerMetrics
	cron          *cron.Cron
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context, batchSize int) (int, error)
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Policy == nil || p.Quotes == nil || p.Invoices == nil || p.Subscriptions == nil || p.Relay == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		policy:        p.Policy,
		quotes:        p.Quotes,
		invoices:      p.Invoices,
		subscriptions: p.Subscriptions,
		relay:         p.Relay,
		locker:        NewLocker(p.Redis),
		metrics:       p.Metrics,
	}, nil
}

func (s *Scheduler) jobs() []job {
	policy := s.policy.Get().Scheduler
	return []job{
		{JobExpireQuotes, policy.ExpireQuotesSchedule, func(ctx context.Context, limit int) (int, error) {
			return s.quotes.ExpireSweep(ctx, s.clock.Now(), limit)
		}},
		{JobOverdueInvoices, policy.OverdueInvoicesSchedule, func(ctx context.Context, limit int) (int, error) {
			return s.invoices.OverdueSweep(ctx, s.clock.Now(), limit)
		}},
		{JobRenewSubscriptions, policy.RenewSubscriptionsSchedule, func(ctx context.Context, limit int) (int, error) {
			return s.subscriptions.RenewDue(ctx, s.clock.Now(), limit)
		}},
		{JobRelayEvents, policy.RelayEventsSchedule, func(ctx context.Context, limit int) (int, error) {
			return s.relay.RelayPending(ctx, limit)
		}},
	}
}

// Start registers every enabled job on its cron schedule and starts the cron runner.
// Schedules are read once; batch sizes are re-read on every run.
func (s *Scheduler) Start() error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(newCronLogger(s.log)),
		cron.WithChain(
			cron.Recover(newCronLogger(s.log)),
			cron.SkipIfStillRunning(newCronLogger(s.log)),
		),
	)

	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		j := j
		if _, err := c.AddFunc(j.schedule, func() {
			if err := s.runJob(context.Background(), j); err != nil {
				s.log.Warn("scheduler job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
		}
		s.log.Info("scheduler job registered",
			zap.String("job", j.name),
			zap.String("schedule", j.schedule),
		)
	}

	s.cron = c
	c.Start()
	return nil
}

// Stop halts the cron runner; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// RunOnce runs every enabled job once, in order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if s.isJobEnabled(j.name) {
			err = errors.Join(err, s.runJob(parent, j))
		}
	}
	return err
}

// runJob drains one job in batches as the system actor. A batch smaller than
// the batch size ends the run, so rows skipped on conflict wait for the next tick.
func (s *Scheduler) runJob(parent context.Context, j job) error {
	batchSize := s.policy.Get().Scheduler.BatchSize
	ctx, cancel := context.WithTimeout(actor.WithSystem(parent), s.cfg.JobTimeout)
	defer cancel()

	lockKey := s.cfg.LockPrefix + j.name
	token, acquired, err := s.locker.TryLock(ctx, lockKey, s.cfg.JobTimeout)
	if err != nil {
		s.metrics.IncJobError(j.name, err)
		return fmt.Errorf("%s: lock: %w", j.name, err)
	}
	if !acquired {
		s.logger(ctx).Debug("scheduler.job.locked", zap.String("job", j.name))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.Background(), lockKey, token); err != nil {
			s.logger(ctx).Warn("scheduler.job.unlock_failed", zap.String("job", j.name), zap.Error(err))
		}
	}()

	start := time.Now()
	run := s.newJobRun(j.name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", j.name),
		zap.String("run_id", run.runID),
	)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(j.name)

	for {
		if err = ctx.Err(); err != nil {
			break
		}
		var processed int
		processed, err = j.run(ctx, batchSize)
		run.AddProcessed(processed)
		s.metrics.AddBatchProcessed(j.name, processed)
		if err != nil || processed < batchSize {
			break
		}
	}

	s.metrics.ObserveJobDuration(j.name, time.Since(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(j.name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(j.name)
		log.Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", j.name, err)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

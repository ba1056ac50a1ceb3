package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/backoffice/internal/config"
)

// Config controls job deadlines and which jobs this process runs.
// Schedules and batch sizes live in the billing config and may change at runtime.
type Config struct {
	JobTimeout  time.Duration
	LockPrefix  string
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		JobTimeout: 30 * time.Second,
		LockPrefix: "backoffice:scheduler:",
	}
}

func ProvideConfig(cfg config.Config) Config {
	out := Config{
		JobTimeout: time.Duration(cfg.SchedulerJobTimeout) * time.Second,
	}
	for _, job := range strings.Split(cfg.SchedulerJobs, ",") {
		if job = strings.TrimSpace(job); job != "" {
			out.EnabledJobs = append(out.EnabledJobs, job)
		}
	}
	return out.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if strings.TrimSpace(c.LockPrefix) == "" {
		c.LockPrefix = defaults.LockPrefix
	}
	return c
}

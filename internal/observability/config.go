package observability

import (
	"strings"

	"github.com/smallbiznis/backoffice/internal/config"
)

// Config is the observability slice of the application config, normalized.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	TracingEnabled   bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:      strings.TrimSpace(cfg.AppName),
		Environment:      strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:          strings.TrimSpace(cfg.AppVersion),
		LogLevel:         strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
		LogFormat:        strings.ToLower(strings.TrimSpace(cfg.LogFormat)),
		TracingEnabled:   cfg.OTLPEnabled,
		ExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		ExporterProtocol: strings.ToLower(strings.TrimSpace(cfg.OTLPProtocol)),
		SamplingRatio:    cfg.OTLPSamplingRatio,
	}
	if out.ServiceName == "" {
		out.ServiceName = "backoffice"
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.LogFormat == "" {
		out.LogFormat = "json"
	}
	if out.ExporterProtocol == "" {
		out.ExporterProtocol = "grpc"
	}
	if out.SamplingRatio < 0 || out.SamplingRatio > 1 {
		out.SamplingRatio = 0.1
	}
	if out.ExporterEndpoint == "" {
		out.TracingEnabled = false
	}
	return out
}

// Debug reports whether stack traces should be attached to error logs.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

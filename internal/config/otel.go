package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"
)

// OTELConfig is the span-export configuration, read from the standard
// OTEL_* environment variables. Only consulted when --otel is set.
type OTELConfig struct {
	ServiceName        string `env:"OTEL_SERVICE_NAME" envDefault:"threadcatch"`
	ResourceAttributes string `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:""`
	ExporterEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TracesEndpoint     string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" envDefault:""`
}

// ParseOTELConfig reads the export configuration from the environment.
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("reading OTEL environment: %w", err)
	}
	return &cfg, nil
}

// GetEndpoint returns the exporter endpoint for trace data. The
// traces-specific variable wins over the generic one; with neither set,
// a collector on the local host is assumed.
func (c *OTELConfig) GetEndpoint() string {
	for _, endpoint := range []string{c.TracesEndpoint, c.ExporterEndpoint} {
		if endpoint != "" {
			return endpoint
		}
	}
	return "localhost:4317"
}

// ParseResourceAttributes splits the comma-separated key=value pairs of
// OTEL_RESOURCE_ATTRIBUTES into resource attributes. Pairs without a
// "=" or with an empty key are dropped.
func (c *OTELConfig) ParseResourceAttributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, pair := range strings.Split(c.ResourceAttributes, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		attrs = append(attrs, attribute.String(key, strings.TrimSpace(value)))
	}
	return attrs
}

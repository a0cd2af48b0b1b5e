package telemetry

import (
	"fmt"
	"time"
)

// Config contains the telemetry configuration for vtyctl.
type Config struct {
	// ServiceName identifies the process in traces and metrics.
	ServiceName string `toml:"service_name"`

	// ServiceVersion is the build version.
	ServiceVersion string `toml:"-"`

	// Logging contains logging configuration.
	Logging LoggingConfig `toml:"logging"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `toml:"tracing"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `toml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`

	// Format specifies the log format (console, json).
	Format string `toml:"format"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `toml:"output"`

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool `toml:"caller"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool `toml:"enabled"`

	// Exporter is otlp, stdout or none.
	Exporter string `toml:"exporter"`

	// Endpoint is the OTLP collector address.
	Endpoint string `toml:"endpoint"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `toml:"sampling_rate"`

	// ExportTimeout bounds a single export.
	ExportTimeout time.Duration `toml:"export_timeout"`

	// Headers are sent with every OTLP export.
	Headers map[string]string `toml:"headers"`

	// Insecure disables TLS towards the collector.
	Insecure bool `toml:"insecure"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool `toml:"enabled"`

	// ListenAddress is where the watch command serves metrics.
	ListenAddress string `toml:"listen"`

	// Path is the HTTP path for metrics.
	Path string `toml:"path"`

	// Namespace prefixes every metric name.
	Namespace string `toml:"namespace"`

	// Buckets are the latency histogram buckets in seconds.
	Buckets []float64 `toml:"buckets"`
}

// DefaultConfig returns the configuration used when no settings file
// overrides it: console logs, no trace export, metrics collected but only
// served by long-running commands.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "vtyctl",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			Headers:       make(map[string]string),
			Insecure:      true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9273",
			Path:          "/metrics",
			Namespace:     "vtyctl",
			Buckets:       []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics path is required when metrics are enabled")
	}

	return nil
}

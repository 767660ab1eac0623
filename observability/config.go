package observability

import (
	"fmt"
	"strings"
	"time"
)

const (
	// EndpointStdout writes telemetry to stdout instead of an OTLP collector.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default deployment environment.
	EnvironmentDevelopment = "development"

	defaultBatchTimeout  = 5 * time.Second
	defaultExportTimeout = 30 * time.Second
	defaultInterval      = 10 * time.Second
)

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines tracing and metrics export.
type Config struct {
	// Enabled controls whether observability is active. When false, NewProvider returns no-ops.
	Enabled     bool          `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Service     ServiceConfig `koanf:"service" json:"service" yaml:"service" mapstructure:"service"`
	Environment string        `koanf:"environment" json:"environment" yaml:"environment" mapstructure:"environment"`
	Trace       TraceConfig   `koanf:"trace" json:"trace" yaml:"trace" mapstructure:"trace"`
	Metrics     MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// ServiceConfig identifies the service in exported telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version"`
}

// TraceConfig configures span export. Enabled and SampleRate are pointers so an
// explicit false or 0.0 survives ApplyDefaults.
type TraceConfig struct {
	Enabled       *bool             `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Endpoint      string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Protocol      string            `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	Insecure      bool              `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	Headers       map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	SampleRate    *float64          `koanf:"samplerate" json:"samplerate" yaml:"samplerate" mapstructure:"samplerate"`
	BatchTimeout  time.Duration     `koanf:"batchtimeout" json:"batchtimeout" yaml:"batchtimeout" mapstructure:"batchtimeout"`
	ExportTimeout time.Duration     `koanf:"exporttimeout" json:"exporttimeout" yaml:"exporttimeout" mapstructure:"exporttimeout"`
}

// MetricsConfig configures periodic metric export.
type MetricsConfig struct {
	Enabled       *bool             `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Endpoint      string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Protocol      string            `koanf:"protocol" json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	Insecure      bool              `koanf:"insecure" json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	Headers       map[string]string `koanf:"headers" json:"headers" yaml:"headers" mapstructure:"headers"`
	Interval      time.Duration     `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval"`
	ExportTimeout time.Duration     `koanf:"exporttimeout" json:"exporttimeout" yaml:"exporttimeout" mapstructure:"exporttimeout"`
}

// ApplyDefaults fills unset fields. Signals default to enabled when observability is.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	if c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(c.Enabled)
	}
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = defaultBatchTimeout
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = defaultExportTimeout
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(c.Enabled)
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Headers == nil && c.Metrics.Endpoint == c.Trace.Endpoint {
		c.Metrics.Headers = c.Trace.Headers
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = defaultInterval
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = defaultExportTimeout
	}
}

// TraceEnabled reports whether spans are exported.
func (c *Config) TraceEnabled() bool {
	return c.Enabled && c.Trace.Enabled != nil && *c.Trace.Enabled
}

// MetricsEnabled reports whether metrics are exported.
func (c *Config) MetricsEnabled() bool {
	return c.Enabled && c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// Validate checks the configuration. Call ApplyDefaults first.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if rate := c.Trace.SampleRate; rate != nil && (*rate < 0 || *rate > 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleRate, *rate)
	}
	if err := validateExport("trace", c.Trace.Endpoint, c.Trace.Protocol); err != nil {
		return err
	}
	return validateExport("metrics", c.Metrics.Endpoint, c.Metrics.Protocol)
}

func validateExport(signal, endpoint, protocol string) error {
	if endpoint == EndpointStdout {
		return nil
	}
	switch protocol {
	case ProtocolHTTP:
		return nil
	case ProtocolGRPC:
		if strings.Contains(endpoint, "://") {
			return fmt.Errorf("%s endpoint %q: %w: grpc expects host:port", signal, endpoint, ErrInvalidEndpointFormat)
		}
		return nil
	default:
		return fmt.Errorf("%s protocol %q: %w", signal, protocol, ErrInvalidProtocol)
	}
}

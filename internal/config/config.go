package config

import "time"

// Default values applied before the YAML file and the environment.
const (
	DefaultPort              = 1000
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultJWKSCacheTTL      = 300 * time.Second
	DefaultJWKSFetchTimeout  = 10 * time.Second
	DefaultBackendTimeout    = 30 * time.Second
	DefaultMaxBodySize       = 10 << 20
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultOTLPEndpoint      = "http://otel-collector:4317"
	DefaultServiceName       = "gateway-service"
	DefaultSamplingRate      = 1.0
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultBreakerMaxFailure = 5
	DefaultBreakerTimeout    = 30 * time.Second
)

// GatewayConfig is the complete gateway configuration.
type GatewayConfig struct {
	Listener      ListenerConfig      `yaml:"listener" json:"listener"`
	JWKS          JWKSConfig          `yaml:"jwks" json:"jwks"`
	Backend       BackendConfig       `yaml:"backend" json:"backend"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ListenerConfig configures the public HTTP listener.
type ListenerConfig struct {
	Bind            string   `yaml:"bind,omitempty" json:"bind,omitempty"`
	Port            int      `yaml:"port" json:"port"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// JWKSConfig configures the signing key set source and its cache.
type JWKSConfig struct {
	URL            string                `yaml:"url" json:"url"`
	CacheTTL       Duration              `yaml:"cacheTTL,omitempty" json:"cacheTTL,omitempty"`
	FetchTimeout   Duration              `yaml:"fetchTimeout,omitempty" json:"fetchTimeout,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the breaker guarding key set fetches.
type CircuitBreakerConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	MaxFailures int      `yaml:"maxFailures,omitempty" json:"maxFailures,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// BackendConfig configures the single upstream target.
type BackendConfig struct {
	URL          string   `yaml:"url" json:"url"`
	Timeout      Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxBodySize  int64    `yaml:"maxBodySize,omitempty" json:"maxBodySize,omitempty"`
	PreservePath bool     `yaml:"preservePath,omitempty" json:"preservePath,omitempty"`
}

// ObservabilityConfig groups logging, metrics and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port,omitempty" json:"port,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// DefaultConfig returns a configuration populated with defaults.
// JWKS and backend URLs have no default and must be supplied.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Listener: ListenerConfig{
			Bind:            "0.0.0.0",
			Port:            DefaultPort,
			ReadTimeout:     Duration(DefaultReadTimeout),
			WriteTimeout:    Duration(DefaultWriteTimeout),
			IdleTimeout:     Duration(DefaultIdleTimeout),
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		JWKS: JWKSConfig{
			CacheTTL:     Duration(DefaultJWKSCacheTTL),
			FetchTimeout: Duration(DefaultJWKSFetchTimeout),
		},
		Backend: BackendConfig{
			Timeout:     Duration(DefaultBackendTimeout),
			MaxBodySize: DefaultMaxBodySize,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  DefaultLogLevel,
				Format: DefaultLogFormat,
				Output: "stdout",
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    DefaultMetricsPort,
				Path:    DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Enabled:      false,
				OTLPEndpoint: DefaultOTLPEndpoint,
				ServiceName:  DefaultServiceName,
				SamplingRate: DefaultSamplingRate,
			},
		},
	}
}

// applyDefaults fills zero values that a partial YAML document left unset.
func (c *GatewayConfig) applyDefaults() {
	d := DefaultConfig()

	if c.Listener.Bind == "" {
		c.Listener.Bind = d.Listener.Bind
	}
	if c.Listener.Port == 0 {
		c.Listener.Port = d.Listener.Port
	}
	if c.Listener.ReadTimeout == 0 {
		c.Listener.ReadTimeout = d.Listener.ReadTimeout
	}
	if c.Listener.WriteTimeout == 0 {
		c.Listener.WriteTimeout = d.Listener.WriteTimeout
	}
	if c.Listener.IdleTimeout == 0 {
		c.Listener.IdleTimeout = d.Listener.IdleTimeout
	}
	if c.Listener.ShutdownTimeout == 0 {
		c.Listener.ShutdownTimeout = d.Listener.ShutdownTimeout
	}
	if c.JWKS.CacheTTL == 0 {
		c.JWKS.CacheTTL = d.JWKS.CacheTTL
	}
	if c.JWKS.FetchTimeout == 0 {
		c.JWKS.FetchTimeout = d.JWKS.FetchTimeout
	}
	if cb := c.JWKS.CircuitBreaker; cb != nil {
		if cb.MaxFailures == 0 {
			cb.MaxFailures = DefaultBreakerMaxFailure
		}
		if cb.Timeout == 0 {
			cb.Timeout = Duration(DefaultBreakerTimeout)
		}
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Backend.MaxBodySize == 0 {
		c.Backend.MaxBodySize = d.Backend.MaxBodySize
	}

	obs := &c.Observability
	if obs.Logging.Level == "" {
		obs.Logging.Level = d.Observability.Logging.Level
	}
	if obs.Logging.Format == "" {
		obs.Logging.Format = d.Observability.Logging.Format
	}
	if obs.Logging.Output == "" {
		obs.Logging.Output = d.Observability.Logging.Output
	}
	if obs.Metrics.Port == 0 {
		obs.Metrics.Port = d.Observability.Metrics.Port
	}
	if obs.Metrics.Path == "" {
		obs.Metrics.Path = d.Observability.Metrics.Path
	}
	if obs.Tracing.OTLPEndpoint == "" {
		obs.Tracing.OTLPEndpoint = d.Observability.Tracing.OTLPEndpoint
	}
	if obs.Tracing.ServiceName == "" {
		obs.Tracing.ServiceName = d.Observability.Tracing.ServiceName
	}
	if obs.Tracing.SamplingRate == 0 {
		obs.Tracing.SamplingRate = d.Observability.Tracing.SamplingRate
	}
}

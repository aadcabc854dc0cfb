package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized as overrides.
const (
	EnvJWKSURL        = "JWKS_URL"
	EnvRouterURL      = "ROUTER_URL"
	EnvBackendURL     = "BACKEND_URL"
	EnvPort           = "PORT"
	EnvLogLevel       = "LOG_LEVEL"
	EnvJSONLogs       = "JSON_LOGS"
	EnvOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvServiceName    = "OTEL_SERVICE_NAME"
	EnvTracingEnabled = "TRACING_ENABLED"
	EnvJWKSCacheTTL   = "JWKS_CACHE_TTL"
	EnvBackendTimeout = "BACKEND_TIMEOUT"
	EnvMetricsPort    = "METRICS_PORT"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Loader handles configuration loading from files, readers and the environment.
type Loader struct {
	lookup LookupFunc
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLookup replaces os.LookupEnv, mostly for tests.
func WithLookup(fn LookupFunc) LoaderOption {
	return func(l *Loader) {
		l.lookup = fn
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the optional file at path and applies environment overrides.
func Load(path string) (*GatewayConfig, error) {
	return NewLoader().Load(path)
}

// Load reads the optional file at path and applies environment overrides.
// An empty path means environment only.
func (l *Loader) Load(path string) (*GatewayConfig, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := l.applyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parse(data)
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*GatewayConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parse(data)
}

func (l *Loader) parse(data []byte) (*GatewayConfig, error) {
	content := l.substituteEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.applyDefaults()

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := l.lookup(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// applyEnv overlays deployment environment variables on cfg.
func (l *Loader) applyEnv(cfg *GatewayConfig) error {
	if v, ok := l.nonEmpty(EnvJWKSURL); ok {
		cfg.JWKS.URL = v
	}
	if v, ok := l.nonEmpty(EnvRouterURL); ok {
		cfg.Backend.URL = v
	}
	// BACKEND_URL wins over the legacy ROUTER_URL name.
	if v, ok := l.nonEmpty(EnvBackendURL); ok {
		cfg.Backend.URL = v
	}
	if v, ok := l.nonEmpty(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Listener.Port = port
	}
	if v, ok := l.nonEmpty(EnvMetricsPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMetricsPort, v, err)
		}
		cfg.Observability.Metrics.Port = port
	}
	if v, ok := l.nonEmpty(EnvLogLevel); ok {
		cfg.Observability.Logging.Level = strings.ToLower(v)
	}
	if v, ok := l.nonEmpty(EnvJSONLogs); ok {
		jsonLogs, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvJSONLogs, v, err)
		}
		if jsonLogs {
			cfg.Observability.Logging.Format = "json"
		} else {
			cfg.Observability.Logging.Format = "console"
		}
	}
	if v, ok := l.nonEmpty(EnvOTLPEndpoint); ok {
		cfg.Observability.Tracing.OTLPEndpoint = v
		cfg.Observability.Tracing.Enabled = true
	}
	if v, ok := l.nonEmpty(EnvServiceName); ok {
		cfg.Observability.Tracing.ServiceName = v
	}
	if v, ok := l.nonEmpty(EnvTracingEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTracingEnabled, v, err)
		}
		cfg.Observability.Tracing.Enabled = enabled
	}
	if v, ok := l.nonEmpty(EnvJWKSCacheTTL); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvJWKSCacheTTL, v, err)
		}
		cfg.JWKS.CacheTTL = d
	}
	if v, ok := l.nonEmpty(EnvBackendTimeout); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBackendTimeout, v, err)
		}
		cfg.Backend.Timeout = d
	}
	return nil
}

func (l *Loader) nonEmpty(key string) (string, bool) {
	v, ok := l.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(config *GatewayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateListener(&config.Listener)
	v.validateJWKS(&config.JWKS)
	v.validateBackend(&config.Backend)
	v.validateObservability(&config.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateListener(l *ListenerConfig) {
	v.validatePort("listener.port", l.Port)
	if l.ShutdownTimeout < 0 {
		v.addError("listener.shutdownTimeout", "must not be negative")
	}
}

func (v *Validator) validateJWKS(j *JWKSConfig) {
	v.validateURL("jwks.url", j.URL)
	if j.CacheTTL <= 0 {
		v.addError("jwks.cacheTTL", "must be positive")
	}
	if j.FetchTimeout <= 0 {
		v.addError("jwks.fetchTimeout", "must be positive")
	}
	if cb := j.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.MaxFailures <= 0 {
			v.addError("jwks.circuitBreaker.maxFailures", "must be positive")
		}
		if cb.Timeout <= 0 {
			v.addError("jwks.circuitBreaker.timeout", "must be positive")
		}
	}
}

func (v *Validator) validateBackend(b *BackendConfig) {
	v.validateURL("backend.url", b.URL)
	if b.Timeout <= 0 {
		v.addError("backend.timeout", "must be positive")
	}
	if b.MaxBodySize <= 0 {
		v.addError("backend.maxBodySize", "must be positive")
	}
}

func (v *Validator) validateObservability(o *ObservabilityConfig) {
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("observability.logging.level", fmt.Sprintf("unsupported level %q", o.Logging.Level))
	}
	switch o.Logging.Format {
	case "json", "console":
	default:
		v.addError("observability.logging.format", fmt.Sprintf("unsupported format %q", o.Logging.Format))
	}
	if o.Metrics.Enabled {
		v.validatePort("observability.metrics.port", o.Metrics.Port)
		if !strings.HasPrefix(o.Metrics.Path, "/") {
			v.addError("observability.metrics.path", "must start with /")
		}
	}
	if o.Tracing.Enabled {
		if o.Tracing.OTLPEndpoint == "" {
			v.addError("observability.tracing.otlpEndpoint", "is required when tracing is enabled")
		}
		if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
			v.addError("observability.tracing.samplingRate", "must be between 0 and 1")
		}
	}
}

func (v *Validator) validatePort(path string, port int) {
	if port < 1 || port > 65535 {
		v.addError(path, fmt.Sprintf("invalid port %d", port))
	}
}

func (v *Validator) validateURL(path, raw string) {
	if raw == "" {
		v.addError(path, "is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		v.addError(path, fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.addError(path, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		v.addError(path, "missing host")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *GatewayConfig {
	cfg := DefaultConfig()
	cfg.JWKS.URL = "https://idp.example.com/jwks.json"
	cfg.Backend.URL = "http://backend:8080"
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateConfig(nil))
}

func TestValidateConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
		path   string
	}{
		{"missing jwks url", func(c *GatewayConfig) { c.JWKS.URL = "" }, "jwks.url"},
		{"bad jwks scheme", func(c *GatewayConfig) { c.JWKS.URL = "ftp://idp/jwks" }, "jwks.url"},
		{"missing backend host", func(c *GatewayConfig) { c.Backend.URL = "http://" }, "backend.url"},
		{"port out of range", func(c *GatewayConfig) { c.Listener.Port = 70000 }, "listener.port"},
		{"zero ttl", func(c *GatewayConfig) { c.JWKS.CacheTTL = 0 }, "jwks.cacheTTL"},
		{"zero body size", func(c *GatewayConfig) { c.Backend.MaxBodySize = 0 }, "backend.maxBodySize"},
		{"log level", func(c *GatewayConfig) { c.Observability.Logging.Level = "trace" }, "observability.logging.level"},
		{"log format", func(c *GatewayConfig) { c.Observability.Logging.Format = "xml" }, "observability.logging.format"},
		{"metrics path", func(c *GatewayConfig) { c.Observability.Metrics.Path = "metrics" }, "observability.metrics.path"},
		{"sampling rate", func(c *GatewayConfig) {
			c.Observability.Tracing.Enabled = true
			c.Observability.Tracing.SamplingRate = 2
		}, "observability.tracing.samplingRate"},
		{"breaker failures", func(c *GatewayConfig) {
			c.JWKS.CircuitBreaker = &CircuitBreakerConfig{Enabled: true, Timeout: Duration(1)}
		}, "jwks.circuitBreaker.maxFailures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: b", ValidationErrors{{Path: "a", Message: "b"}}.Error())
	assert.Contains(t, ValidationErrors{{Message: "x"}, {Message: "y"}}.Error(), "2 validation errors")
}

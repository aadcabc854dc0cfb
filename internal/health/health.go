// Package health provides the liveness and readiness endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status represents a health status.
type Status string

const (
	// StatusUp indicates the component is healthy.
	StatusUp Status = "UP"
	// StatusDown indicates the component cannot serve traffic.
	StatusDown Status = "DOWN"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// liveBody is the liveness response; it never depends on collaborators.
const liveBody = `{"status":"UP"}`

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Status  Status           `json:"status"`
	Version string           `json:"version,omitempty"`
	Uptime  string           `json:"uptime,omitempty"`
	Checks  map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual check result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc performs a readiness check.
type CheckFunc func() Check

// Checker provides health and readiness checking functionality.
type Checker struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
	mu        sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
	}
}

// RegisterCheck registers a readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Readiness runs every check. Any DOWN check makes the whole response DOWN.
func (c *Checker) Readiness() ReadinessResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()

	response := ReadinessResponse{
		Status:  StatusUp,
		Version: c.version,
		Uptime:  time.Since(c.startTime).Round(time.Second).String(),
		Checks:  make(map[string]Check, len(c.checks)),
	}

	for name, checkFunc := range c.checks {
		check := checkFunc()
		response.Checks[name] = check
		if check.Status != StatusUp {
			response.Status = StatusDown
		}
	}

	return response
}

// HealthHandler serves the liveness endpoint.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(liveBody))
	}
}

// ReadinessHandler serves the readiness endpoint: 200 when every check is
// UP, 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response := c.Readiness()

		w.Header().Set(headerContentType, contentTypeJSON)

		statusCode := http.StatusOK
		if response.Status != StatusUp {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(response)
	}
}

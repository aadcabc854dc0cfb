package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_HealthHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.0.0")
	c.RegisterCheck("always-down", func() Check { return Check{Status: StatusDown} })

	rec := httptest.NewRecorder()
	c.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestChecker_ReadinessHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus Status
	}{
		{name: "no checks", wantCode: http.StatusOK, wantStatus: StatusUp},
		{
			name: "all up",
			checks: map[string]CheckFunc{
				"a": func() Check { return Check{Status: StatusUp} },
				"b": func() Check { return Check{Status: StatusUp} },
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusUp,
		},
		{
			name: "one down",
			checks: map[string]CheckFunc{
				"a": func() Check { return Check{Status: StatusUp} },
				"b": func() Check { return Check{Status: StatusDown, Message: "nope"} },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("v")
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "v", resp.Version)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestKeySetCheck(t *testing.T) {
	t.Parallel()

	down := KeySetCheck(KeySetSourceFunc(func() (time.Time, int, bool) { return time.Time{}, 0, false }))()
	assert.Equal(t, StatusDown, down.Status)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	up := KeySetCheck(KeySetSourceFunc(func() (time.Time, int, bool) { return at, 2, true }))()
	assert.Equal(t, StatusUp, up.Status)
	assert.Equal(t, "2 keys, fetched 2026-01-02T03:04:05Z", up.Message)
}

func TestChecker_Names(t *testing.T) {
	t.Parallel()

	c := NewChecker("")
	c.RegisterCheck("b", func() Check { return Check{Status: StatusUp} })
	c.RegisterCheck("a", func() Check { return Check{Status: StatusUp} })
	assert.Equal(t, []string{"a", "b"}, c.Names())
}

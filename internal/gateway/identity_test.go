package gateway

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/authgw/internal/auth/jwt"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

func TestInjectIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		claims    jwt.Claims
		requestID string
		want      map[string]string
		absent    []string
		warnings  int
	}{
		{
			name:      "all headers",
			claims:    jwt.Claims{Subject: "u1", OrganizationID: "o1", Roles: []string{"a", "b", "c"}},
			requestID: "rid",
			want: map[string]string{
				HeaderUserSub:   "u1",
				HeaderOrgID:     "o1",
				HeaderUserRoles: "a,b,c",
				HeaderRequestID: "rid",
			},
		},
		{
			name:   "no roles gives empty header",
			claims: jwt.Claims{Subject: "u1", OrganizationID: "o1"},
			want: map[string]string{
				HeaderUserSub:   "u1",
				HeaderUserRoles: "",
			},
			absent: []string{HeaderRequestID},
		},
		{
			name:     "invalid subject is skipped",
			claims:   jwt.Claims{Subject: "bad\nsub", OrganizationID: "o1", Roles: []string{"r"}},
			want:     map[string]string{HeaderOrgID: "o1", HeaderUserRoles: "r"},
			absent:   []string{HeaderUserSub},
			warnings: 1,
		},
		{
			name:     "invalid role is skipped",
			claims:   jwt.Claims{Subject: "u1", OrganizationID: "o1", Roles: []string{"ok", "bad\x00"}},
			want:     map[string]string{HeaderUserSub: "u1"},
			absent:   []string{HeaderUserRoles},
			warnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.WarnLevel)
			logger := observability.NewLoggerFromZap(zap.New(core))

			h := http.Header{}
			h.Set(HeaderUserSub, "spoofed")
			h.Set(HeaderUserRoles, "spoofed")
			claims := tt.claims
			injectIdentity(h, &claims, tt.requestID, logger)

			for name, value := range tt.want {
				assert.Equal(t, []string{value}, h.Values(name), name)
			}
			for _, name := range tt.absent {
				assert.Empty(t, h.Values(name), name)
			}
			assert.Equal(t, tt.warnings, logs.Len())
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Bearer ", "", true},
		{"Bearer", "", false},
		{"bearer abc", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

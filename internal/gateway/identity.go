package gateway

import (
	"net/http"

	"golang.org/x/net/http/httpguts"

	"github.com/vyrodovalexey/authgw/internal/auth/jwt"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// Identity headers set on every authenticated request.
const (
	HeaderUserSub   = "X-User-Sub"
	HeaderOrgID     = "X-Org-Id"
	HeaderUserRoles = "X-User-Roles"
	HeaderRequestID = "X-Request-ID"
)

var identityHeaders = []string{HeaderUserSub, HeaderOrgID, HeaderUserRoles}

// injectIdentity replaces any client-supplied identity headers with values
// from claims. A value that is not a legal header value is skipped and the
// request still proceeds.
func injectIdentity(h http.Header, claims *jwt.Claims, requestID string, logger observability.Logger) {
	for _, name := range identityHeaders {
		h.Del(name)
	}

	setIfValid(h, HeaderUserSub, claims.Subject, logger)
	setIfValid(h, HeaderOrgID, claims.OrganizationID, logger)
	setIfValid(h, HeaderUserRoles, claims.RolesHeaderValue(), logger)

	if requestID != "" {
		setIfValid(h, HeaderRequestID, requestID, logger)
	}
}

func setIfValid(h http.Header, name, value string, logger observability.Logger) {
	if !httpguts.ValidHeaderFieldValue(value) {
		logger.Warn("skipping identity header with invalid value",
			observability.String("header", name),
		)
		return
	}
	h.Set(name, value)
}

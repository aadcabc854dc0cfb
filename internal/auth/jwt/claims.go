package jwt

import (
	"errors"
	"strings"
	"time"
)

// Identity claim errors.
var (
	ErrMissingSubject      = errors.New("missing sub claim")
	ErrMissingOrganization = errors.New("missing org_id claim")
	ErrMissingRoles        = errors.New("missing roles claim")
)

// Claims holds the verified identity facts extracted from a token payload.
type Claims struct {
	Subject          string   `json:"sub"`
	OrganizationID   string   `json:"org_id"`
	OrganizationName string   `json:"org_name,omitempty"`
	Roles            []string `json:"roles"`
	ExpiresAt        int64    `json:"exp"`
}

// Validate requires sub and org_id to be non-empty and roles to be
// present. An empty roles list is allowed.
func (c *Claims) Validate() error {
	switch {
	case c.Subject == "":
		return ErrMissingSubject
	case c.OrganizationID == "":
		return ErrMissingOrganization
	case c.Roles == nil:
		return ErrMissingRoles
	}
	return nil
}

// RolesHeaderValue joins roles with commas, preserving order.
func (c *Claims) RolesHeaderValue() string {
	return strings.Join(c.Roles, ",")
}

// Expired reports whether the token had expired at now. A token without
// an expiry (exp == 0) is treated as expired.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt <= 0 {
		return true
	}
	return !now.Add(-leeway).Before(time.Unix(c.ExpiresAt, 0))
}

// ExpirationTime returns the expiry as a time.Time.
func (c *Claims) ExpirationTime() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

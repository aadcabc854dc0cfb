package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vyrodovalexey/authgw/internal/auth/jwt"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/proxy"
)

const bearerPrefix = "Bearer "

const (
	bodyMissingAuth  = `{"error":"Missing or invalid Authorization header"}`
	bodyInvalidToken = `{"error":"Invalid or expired token"}`
)

// Forwarder relays an authenticated request to the backend.
type Forwarder interface {
	Forward(ctx context.Context, r *http.Request) (*proxy.Response, error)
}

// Handler authenticates requests and forwards them.
type Handler struct {
	verifier  jwt.Verifier
	forwarder Forwarder
	logger    observability.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a Handler.
func NewHandler(verifier jwt.Verifier, forwarder Forwarder, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifier:  verifier,
		forwarder: forwarder,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		logger.Warn("missing or invalid authorization header")
		writeUnauthorized(w, bodyMissingAuth)
		return
	}

	claims, err := h.verifier.Verify(ctx, token)
	if err != nil {
		logger.Warn("token verification failed",
			observability.String("reason", jwt.KindOf(err).String()),
			observability.Error(err),
		)
		writeUnauthorized(w, bodyInvalidToken)
		return
	}

	logger.Info("token verified",
		observability.String("user_id", claims.Subject),
		observability.String("org_id", claims.OrganizationID),
		observability.Strings("roles", claims.Roles),
	)

	out := r.Clone(ctx)
	injectIdentity(out.Header, claims, observability.RequestIDFromContext(ctx), logger)

	resp, err := h.forwarder.Forward(ctx, out)
	if err != nil {
		logger.Error("error forwarding request",
			observability.Int("status", proxy.StatusCode(err)),
			observability.Duration("duration", time.Since(start)),
			observability.Error(err),
		)
		proxy.WriteError(w, err)
		return
	}

	if err := resp.Render(w); err != nil {
		logger.Warn("failed to write response", observability.Error(err))
		return
	}

	logger.Info("request forwarded",
		observability.Int("status", resp.StatusCode),
		observability.Duration("duration", time.Since(start)),
	)
}

// bearerToken extracts the token from a "Bearer <token>" header value.
// The scheme match is case sensitive; surrounding whitespace is trimmed.
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(bearerPrefix):]), true
}

func writeUnauthorized(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, body)
}

package jwt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// SupportedAlgorithm is the only accepted signature algorithm.
const SupportedAlgorithm = jwa.RS256

// Verifier turns a bearer token into verified Claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

type verifier struct {
	cache   *KeySetCache
	fetcher Fetcher
	now     func() time.Time
	leeway  time.Duration
	logger  observability.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// VerifierOption configures the verifier.
type VerifierOption func(*verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *verifier) {
		v.logger = logger
	}
}

// WithVerifierMetrics sets the metrics sink.
func WithVerifierMetrics(metrics *Metrics) VerifierOption {
	return func(v *verifier) {
		v.metrics = metrics
	}
}

// WithVerifierClock overrides time.Now for the expiry check.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *verifier) {
		v.now = now
	}
}

// WithLeeway tolerates clock skew on the expiry check. Zero by default.
func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *verifier) {
		v.leeway = leeway
	}
}

// NewVerifier creates a Verifier that resolves keys through cache, refreshing
// with fetcher when the cache is empty or stale.
func NewVerifier(cache *KeySetCache, fetcher Fetcher, opts ...VerifierOption) Verifier {
	v := &verifier{
		cache:   cache,
		fetcher: fetcher,
		now:     time.Now,
		logger:  observability.NopLogger(),
		tracer:  otel.Tracer("github.com/vyrodovalexey/authgw/internal/auth/jwt"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the checks in order and returns on the first failure:
// header, key id, key lookup, signature, identity claims, expiry.
func (v *verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "jwt.verify", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	claims, err := v.verify(ctx, token)

	if v.metrics != nil {
		v.metrics.RecordVerification(err, time.Since(start))
	}
	if err != nil {
		span.SetAttributes(attribute.String("jwt.failure", KindOf(err).String()))
		observability.RecordError(span, err)
		v.logger.WithContext(ctx).Debug("token verification failed",
			observability.String("reason", KindOf(err).String()),
			observability.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("jwt.sub", claims.Subject))
	return claims, nil
}

func (v *verifier) verify(ctx context.Context, token string) (*Claims, error) {
	msg, err := parseCompact(token)
	if err != nil {
		return nil, err
	}

	headers := msg.Signatures()[0].ProtectedHeaders()
	if alg := headers.Algorithm(); alg != SupportedAlgorithm {
		return nil, &VerificationError{
			Kind:    KindMalformedToken,
			Message: "unsupported signing algorithm " + alg.String(),
		}
	}

	kid := headers.KeyID()
	if kid == "" {
		return nil, &VerificationError{Kind: KindMissingKeyID}
	}

	keys, err := v.cache.Get(ctx, v.fetcher)
	if err != nil {
		return nil, err
	}

	key, ok := keys.Find(kid)
	if !ok {
		return nil, &VerificationError{Kind: KindUnknownKeyID, KeyID: kid}
	}

	pub, err := key.PublicKey()
	if err != nil {
		return nil, &VerificationError{Kind: KindInvalidSignature, KeyID: kid, Message: "unusable signing key", Cause: err}
	}

	payload, err := jws.Verify([]byte(token), jws.WithKey(SupportedAlgorithm, pub))
	if err != nil {
		return nil, &VerificationError{Kind: KindInvalidSignature, KeyID: kid, Cause: err}
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, &VerificationError{Kind: KindMalformedToken, Message: "invalid claims payload", Cause: err}
	}
	if err := claims.Validate(); err != nil {
		return nil, &VerificationError{Kind: KindMalformedToken, Message: "incomplete identity claims", Cause: err}
	}

	if claims.Expired(v.now(), v.leeway) {
		return nil, &VerificationError{Kind: KindTokenExpired, KeyID: kid}
	}

	return &claims, nil
}

// parseCompact accepts only the three-segment compact serialization with
// exactly one signature.
func parseCompact(token string) (*jws.Message, error) {
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, &VerificationError{Kind: KindMalformedToken, Message: "token is not a compact JWS"}
	}

	msg, err := jws.ParseString(token)
	if err != nil {
		return nil, &VerificationError{Kind: KindMalformedToken, Cause: err}
	}
	if len(msg.Signatures()) != 1 {
		return nil, &VerificationError{Kind: KindMalformedToken, Message: "expected exactly one signature"}
	}
	return msg, nil
}

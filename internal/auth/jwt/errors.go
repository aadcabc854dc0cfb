package jwt

import (
	"errors"
	"fmt"
)

// Kind classifies a verification failure.
type Kind int

// Verification failure kinds, in the order the checks run.
const (
	KindUnknown Kind = iota
	KindMalformedToken
	KindMissingKeyID
	KindUnknownKeyID
	KindInvalidSignature
	KindTokenExpired
	KindKeySetUnavailable
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindMalformedToken:
		return "malformed_token"
	case KindMissingKeyID:
		return "missing_key_id"
	case KindUnknownKeyID:
		return "unknown_key_id"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindTokenExpired:
		return "token_expired"
	case KindKeySetUnavailable:
		return "key_set_unavailable"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind. A *VerificationError matches its sentinel
// with errors.Is.
var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrMissingKeyID      = errors.New("token header has no key id")
	ErrUnknownKeyID      = errors.New("key id not found in key set")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrTokenExpired      = errors.New("token has expired")
	ErrKeySetUnavailable = errors.New("key set unavailable")
)

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedToken:
		return ErrMalformedToken
	case KindMissingKeyID:
		return ErrMissingKeyID
	case KindUnknownKeyID:
		return ErrUnknownKeyID
	case KindInvalidSignature:
		return ErrInvalidSignature
	case KindTokenExpired:
		return ErrTokenExpired
	case KindKeySetUnavailable:
		return ErrKeySetUnavailable
	default:
		return nil
	}
}

// VerificationError is returned by every failed verification step.
type VerificationError struct {
	Kind    Kind
	KeyID   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	msg := e.Message
	if msg == "" {
		if s := e.Kind.sentinel(); s != nil {
			msg = s.Error()
		} else {
			msg = "token verification failed"
		}
	}
	if e.KeyID != "" {
		msg = fmt.Sprintf("%s (kid=%s)", msg, e.KeyID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *VerificationError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewVerificationError creates a VerificationError.
func NewVerificationError(kind Kind, message string, cause error) *VerificationError {
	return &VerificationError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnknown
}

package proxy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies a forwarding failure.
type Kind int

// Forwarding failure kinds.
const (
	KindBodyReadError Kind = iota + 1
	KindServiceUnavailable
	KindGatewayTimeout
	KindBadGateway
	KindInternalError
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindBodyReadError:
		return "body_read_error"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindGatewayTimeout:
		return "gateway_timeout"
	case KindBadGateway:
		return "bad_gateway"
	case KindInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// StatusCode maps the kind to the HTTP status returned to the client.
func (k Kind) StatusCode() int {
	switch k {
	case KindBodyReadError:
		return http.StatusBadRequest
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case KindBadGateway:
		return http.StatusBadGateway
	case KindInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors, one per Kind.
var (
	ErrBodyRead           = errors.New("failed to read request body")
	ErrBodyTooLarge       = errors.New("request body exceeds size limit")
	ErrServiceUnavailable = errors.New("backend unavailable")
	ErrGatewayTimeout     = errors.New("backend request timed out")
	ErrBadGateway         = errors.New("bad response from backend")
	ErrInternal           = errors.New("failed to build response")
)

func (k Kind) sentinel() error {
	switch k {
	case KindBodyReadError:
		return ErrBodyRead
	case KindServiceUnavailable:
		return ErrServiceUnavailable
	case KindGatewayTimeout:
		return ErrGatewayTimeout
	case KindBadGateway:
		return ErrBadGateway
	case KindInternalError:
		return ErrInternal
	default:
		return nil
	}
}

// ForwardError describes a failed forward.
type ForwardError struct {
	Kind   Kind
	Op     string
	Target string
	Cause  error
}

// Error implements the error interface.
func (e *ForwardError) Error() string {
	msg := "forward failed"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Target != "" {
		msg = fmt.Sprintf("proxy error [%s] target=%s: %s", e.Op, e.Target, msg)
	} else {
		msg = fmt.Sprintf("proxy error [%s]: %s", e.Op, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ForwardError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *ForwardError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// StatusCode returns the HTTP status for the error.
func (e *ForwardError) StatusCode() int {
	return e.Kind.StatusCode()
}

// StatusCode returns the HTTP status for err: the ForwardError status if
// err is one, 500 otherwise.
func StatusCode(err error) int {
	var fe *ForwardError
	if errors.As(err, &fe) {
		return fe.StatusCode()
	}
	return http.StatusInternalServerError
}

// Generic error bodies. Causes are logged, never sent to the client.
const (
	bodyBadRequest         = `{"error":"bad request","message":"failed to read request body"}`
	bodyBadGateway         = `{"error":"bad gateway","message":"Error forwarding request"}`
	bodyServiceUnavailable = `{"error":"service unavailable","message":"Error forwarding request"}`
	bodyGatewayTimeout     = `{"error":"gateway timeout","message":"Error forwarding request"}`
	bodyInternal           = `{"error":"internal server error","message":"Error forwarding request"}`
)

// WriteError writes the generic JSON body and status for err.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)

	var body string
	switch status {
	case http.StatusBadRequest:
		body = bodyBadRequest
	case http.StatusBadGateway:
		body = bodyBadGateway
	case http.StatusServiceUnavailable:
		body = bodyServiceUnavailable
	case http.StatusGatewayTimeout:
		body = bodyGatewayTimeout
	default:
		body = bodyInternal
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

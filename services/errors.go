package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// External error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeInvalidResponse  = "INVALID_RESPONSE"
	CodeInternal         = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeCanceled         = "REQUEST_CANCELED"
)

// statusClientClosedRequest is reported when the caller went away before the
// answer was ready. Nobody reads the response.
const statusClientClosedRequest = 499

var (
	// ErrInvalidResponse marks an upstream reply that is not a well-formed
	// get-pods-with-stats result.
	ErrInvalidResponse = errors.New("invalid upstream response")

	ErrNotFound = errors.New("not found")
)

// ValidationError rejects a query parameter before any I/O happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type UpstreamKind int

const (
	UpstreamUnknown UpstreamKind = iota
	UpstreamTimeout
	UpstreamConnectionFailed
	UpstreamInvalidResponse
)

func (k UpstreamKind) String() string {
	switch k {
	case UpstreamTimeout:
		return "timeout"
	case UpstreamConnectionFailed:
		return "connection_failed"
	case UpstreamInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// UpstreamError is returned by the fetcher once every attempt has failed.
type UpstreamError struct {
	Kind     UpstreamKind
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// upstreamKindOf classifies a single failed attempt.
func upstreamKindOf(err error) UpstreamKind {
	if err == nil {
		return UpstreamUnknown
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if errors.Is(err, ErrInvalidResponse) {
		return UpstreamInvalidResponse
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return UpstreamTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return UpstreamTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return UpstreamConnectionFailed
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return UpstreamConnectionFailed
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return UpstreamConnectionFailed
	}

	return kindFromMessage(err.Error())
}

func kindFromMessage(msg string) UpstreamKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"), strings.Contains(msg, "deadline"):
		return UpstreamTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "econnrefused"),
		strings.Contains(msg, "no such host"), strings.Contains(msg, "connection reset"):
		return UpstreamConnectionFailed
	case strings.Contains(msg, "invalid response"):
		return UpstreamInvalidResponse
	default:
		return UpstreamUnknown
	}
}

// AggregationError is the external form of a failed request.
type AggregationError struct {
	Code      string
	Message   string
	Status    int
	Cause     error
	Duration  time.Duration
	Timestamp time.Time
}

func (e *AggregationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AggregationError) Unwrap() error {
	return e.Cause
}

// Details is the debug payload attached to error responses when enabled.
func (e *AggregationError) Details() map[string]any {
	return map[string]any{
		"duration":  e.Duration.Milliseconds(),
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// ClassifyError maps any pipeline failure onto the external error taxonomy.
// Typed errors are checked first, then the message as a fallback.
func ClassifyError(err error) *AggregationError {
	var ae *AggregationError
	if errors.As(err, &ae) {
		return ae
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return &AggregationError{Code: CodeValidation, Message: ve.Error(), Status: http.StatusBadRequest, Cause: err}
	}
	if errors.Is(err, ErrNotFound) {
		return &AggregationError{Code: CodeNotFound, Message: err.Error(), Status: http.StatusNotFound, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AggregationError{Code: CodeCanceled, Message: "Request canceled by client", Status: statusClientClosedRequest, Cause: err}
	}

	switch upstreamKindOf(err) {
	case UpstreamTimeout:
		return &AggregationError{Code: CodeTimeout, Message: "Upstream node did not respond in time", Status: http.StatusGatewayTimeout, Cause: err}
	case UpstreamConnectionFailed:
		return &AggregationError{Code: CodeConnectionFailed, Message: "Unable to connect to upstream node", Status: http.StatusServiceUnavailable, Cause: err}
	case UpstreamInvalidResponse:
		return &AggregationError{Code: CodeInvalidResponse, Message: "Upstream node returned an invalid response", Status: http.StatusBadGateway, Cause: err}
	}

	return &AggregationError{Code: CodeInternal, Message: "Internal server error", Status: http.StatusInternalServerError, Cause: err}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", &ValidationError{Field: "limit", Message: "must be between 1 and 1000"}, CodeValidation, http.StatusBadRequest},
		{"wrapped_validation", fmt.Errorf("parse: %w", &ValidationError{Field: "status"}), CodeValidation, http.StatusBadRequest},
		{"typed_timeout", &UpstreamError{Kind: UpstreamTimeout, Attempts: 3}, CodeTimeout, http.StatusGatewayTimeout},
		{"typed_connection", &UpstreamError{Kind: UpstreamConnectionFailed, Attempts: 3}, CodeConnectionFailed, http.StatusServiceUnavailable},
		{"typed_invalid", &UpstreamError{Kind: UpstreamInvalidResponse, Attempts: 3}, CodeInvalidResponse, http.StatusBadGateway},
		{"sentinel_invalid", fmt.Errorf("%w: http 500", ErrInvalidResponse), CodeInvalidResponse, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, CodeTimeout, http.StatusGatewayTimeout},
		{"caller_canceled", fmt.Errorf("fetch: %w", context.Canceled), CodeCanceled, statusClientClosedRequest},
		{"econnrefused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, CodeConnectionFailed, http.StatusServiceUnavailable},
		{"dns", &net.DNSError{Err: "no such host", Name: "pod.invalid"}, CodeConnectionFailed, http.StatusServiceUnavailable},
		{"message_timeout", errors.New("request timeout while reading"), CodeTimeout, http.StatusGatewayTimeout},
		{"message_refused", errors.New("ECONNREFUSED 127.0.0.1:6000"), CodeConnectionFailed, http.StatusServiceUnavailable},
		{"not_found", fmt.Errorf("node x: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := ClassifyError(tt.err)
			assert.Equal(t, tt.code, ae.Code)
			assert.Equal(t, tt.status, ae.Status)
			assert.NotEmpty(t, ae.Message)
		})
	}
}

func TestUpstreamErrorUnwraps(t *testing.T) {
	err := &UpstreamError{Kind: UpstreamConnectionFailed, Attempts: 2, Err: syscall.ECONNREFUSED}
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Contains(t, err.Error(), "connection_failed after 2 attempt(s)")
}

func TestAggregationErrorDetails(t *testing.T) {
	ae := ClassifyError(&UpstreamError{Kind: UpstreamTimeout})
	assert.Equal(t, ae, ClassifyError(ae), "already classified errors pass through")

	d := ae.Details()
	assert.Contains(t, d, "duration")
	assert.Contains(t, d, "timestamp")
}

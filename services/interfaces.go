package services

import (
	"context"
	"encoding/json"
	"time"

	"podagg/models"
)

//go:generate mockgen -destination=mock_services.go -package=services podagg/services PodsClient,GeoResolver,CacheStore,Notifier

// PodsClient performs a single get-pods-with-stats call against the upstream
// node and returns the raw result payload.
type PodsClient interface {
	GetPodsWithStats(ctx context.Context) (json.RawMessage, error)
}

// GeoResolver resolves many hosts in one call. Unplaceable hosts are absent
// from the result.
type GeoResolver interface {
	ResolveBatch(ctx context.Context, ips []string) (map[string]models.GeoLocation, error)
}

// CacheStore is a byte-level key/value backend. Expiry of payloads is handled
// above it; ttl is only a hint for backends with native expiry.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, prefix string) (int, error)
}

// Notifier tells operators about upstream outages.
type Notifier interface {
	NotifyUpstreamFailure(code, message string, attempts int) error
}

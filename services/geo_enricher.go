package services

import (
	"context"
	"log"
	"time"

	"podagg/models"
	"podagg/utils"
)

// GeoEnricher attaches locations to node records. Cached hosts are served
// from the geo cache and all misses go out in one batch call. It never fails
// the request: on resolver errors only cached locations are returned.
type GeoEnricher struct {
	resolver GeoResolver
	cache    *TTLCache[models.GeoLocation]
	timeout  time.Duration
	metrics  *Metrics
}

func NewGeoEnricher(resolver GeoResolver, cache *TTLCache[models.GeoLocation], timeout time.Duration, metrics *Metrics) *GeoEnricher {
	return &GeoEnricher{
		resolver: resolver,
		cache:    cache,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Resolve returns one shared location per host it could place.
func (g *GeoEnricher) Resolve(ctx context.Context, hosts []string) map[string]*models.GeoLocation {
	out := make(map[string]*models.GeoLocation, len(hosts))
	seen := make(map[string]struct{}, len(hosts))
	var misses []string

	for _, host := range hosts {
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}

		if loc, ok := g.cache.Get(ctx, host); ok {
			out[host] = &loc
			continue
		}
		misses = append(misses, host)
	}
	g.metrics.observeGeo("cached", len(out))

	if len(misses) == 0 || g.resolver == nil {
		return out
	}

	// Caller cancellation does not abort the lookup; the resolver timeout does.
	detached := context.WithoutCancel(ctx)
	rctx, cancel := context.WithTimeout(detached, g.timeout)
	defer cancel()

	found, err := g.resolver.ResolveBatch(rctx, misses)
	if err != nil {
		log.Printf("⚠️  Geolocation lookup failed for %d hosts, continuing with %d cached: %v", len(misses), len(out), err)
		g.metrics.observeGeo("failed", len(misses))
		return out
	}

	resolved := 0
	for _, host := range misses {
		loc, ok := found[host]
		if !ok {
			continue
		}
		out[host] = &loc
		g.cache.Set(detached, host, loc)
		resolved++
	}
	g.metrics.observeGeo("resolved", resolved)
	g.metrics.observeGeo("unresolved", len(misses)-resolved)

	return out
}

// Enrich sets Location on every node whose address carries a valid IPv4 host.
// Records of the same host share one location value.
func (g *GeoEnricher) Enrich(ctx context.Context, nodes []models.EnrichedNode) {
	hostOf := make([]string, len(nodes))
	hosts := make([]string, 0, len(nodes))
	for i := range nodes {
		host, ok := utils.ExtractIPv4(nodes[i].Address)
		if !ok {
			continue
		}
		hostOf[i] = host
		hosts = append(hosts, host)
	}
	if len(hosts) == 0 {
		return
	}

	locations := g.Resolve(ctx, hosts)
	for i := range nodes {
		if hostOf[i] == "" {
			continue
		}
		if loc, ok := locations[hostOf[i]]; ok {
			nodes[i].Location = loc
		}
	}
}

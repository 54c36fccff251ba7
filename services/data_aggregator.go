package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"podagg/config"
	"podagg/models"
	"podagg/utils"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// DataAggregator runs one node query end to end:
// validate, response cache, fetch, enrich, geolocate, process, cache, respond.
type DataAggregator struct {
	fetcher  *Fetcher
	geo      *GeoEnricher
	cache    *CacheService
	notifier Notifier
	metrics  *Metrics
	versions utils.VersionConfig

	singleFlight bool
	group        singleflight.Group

	now func() time.Time
}

func NewDataAggregator(cfg *config.Config, fetcher *Fetcher, geo *GeoEnricher, cache *CacheService, notifier Notifier, metrics *Metrics) *DataAggregator {
	return &DataAggregator{
		fetcher:  fetcher,
		geo:      geo,
		cache:    cache,
		notifier: notifier,
		metrics:  metrics,
		versions: utils.VersionConfig{
			CurrentStable: cfg.Versions.CurrentStable,
			MinSupported:  cfg.Versions.MinSupported,
			Deprecated:    cfg.Versions.Deprecated,
		},
		singleFlight: cfg.Cache.SingleFlight,
		now:          time.Now,
	}
}

// Handle answers GET /api/nodes. Failures come back as *AggregationError.
func (da *DataAggregator) Handle(ctx context.Context, query url.Values) (*models.NodesResult, error) {
	start := da.now()

	params, err := ParseQuery(query)
	if err != nil {
		return nil, da.fail(err, start)
	}

	resp, cacheHit, err := da.lookup(ctx, ResolveQuery(params))
	if err != nil {
		return nil, da.fail(err, start)
	}

	da.metrics.observeRequest("OK")
	da.metrics.observeDuration(cacheHit, da.now().Sub(start))

	return &models.NodesResult{
		Data: resp.Data,
		Metadata: models.ResponseMetadata{
			Count:       len(resp.Data),
			Timestamp:   da.now().UTC().Format(isoMillis),
			CacheHit:    cacheHit,
			TotalNodes:  resp.Summary.TotalNodes,
			OnlineNodes: resp.Summary.OnlineNodes,
			AvgUptime:   resp.Summary.AvgUptime,
		},
	}, nil
}

// GetNode returns one node of the current snapshot by pubkey.
func (da *DataAggregator) GetNode(ctx context.Context, pubkey string) (*models.EnrichedNode, bool, error) {
	resp, cacheHit, err := da.lookup(ctx, ResolveQuery(models.QueryParams{}))
	if err != nil {
		return nil, false, err
	}

	for i := range resp.Data {
		if resp.Data[i].Pubkey == pubkey {
			return &resp.Data[i], cacheHit, nil
		}
	}
	return nil, cacheHit, fmt.Errorf("node %s: %w", pubkey, ErrNotFound)
}

// GetNetworkStats summarizes the current snapshot.
func (da *DataAggregator) GetNetworkStats(ctx context.Context) (*models.NetworkStats, bool, error) {
	resp, cacheHit, err := da.lookup(ctx, ResolveQuery(models.QueryParams{}))
	if err != nil {
		return nil, false, err
	}
	stats := Aggregate(resp.Data, da.now())
	return &stats, cacheHit, nil
}

// lookup serves rq from the response cache or runs the pipeline on a miss.
func (da *DataAggregator) lookup(ctx context.Context, rq models.ResolvedQuery) (models.CachedResponse, bool, error) {
	key := CacheKey(rq)

	if cached, ok := da.cache.Responses.Get(ctx, key); ok {
		return cached, true, nil
	}

	if !da.singleFlight {
		resp, err := da.run(ctx, rq, key)
		return resp, false, err
	}

	// The shared run outlives any single caller; each caller only stops
	// waiting when its own context ends.
	ch := da.group.DoChan(key, func() (interface{}, error) {
		return da.run(context.WithoutCancel(ctx), rq, key)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Printf("Shared in-flight pipeline run for %s", key)
		}
		if res.Err != nil {
			return models.CachedResponse{}, false, res.Err
		}
		return res.Val.(models.CachedResponse), false, nil
	case <-ctx.Done():
		return models.CachedResponse{}, false, ctx.Err()
	}
}

func (da *DataAggregator) run(ctx context.Context, rq models.ResolvedQuery, key string) (models.CachedResponse, error) {
	nodes, err := da.Snapshot(ctx)
	if err != nil {
		return models.CachedResponse{}, err
	}

	resp := models.CachedResponse{
		Data:    ProcessNodes(nodes, rq),
		Summary: Summarize(nodes),
	}
	da.cache.Responses.Set(ctx, key, resp)
	return resp, nil
}

// Snapshot fetches the pod list and fully enriches it. The result is the
// whole network, before any filtering.
func (da *DataAggregator) Snapshot(ctx context.Context) ([]models.EnrichedNode, error) {
	pods, err := da.fetcher.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			go da.notify(err)
		}
		return nil, err
	}

	now := da.now()
	nodes := make([]models.EnrichedNode, len(pods))
	for i, pod := range pods {
		nodes[i] = utils.EnrichNode(pod, now, &da.versions)
	}

	if da.geo != nil {
		da.geo.Enrich(ctx, nodes)
	}
	return nodes, nil
}

func (da *DataAggregator) notify(err error) {
	if da.notifier == nil {
		return
	}

	ae := ClassifyError(err)
	attempts := 0
	var ue *UpstreamError
	if errors.As(err, &ue) {
		attempts = ue.Attempts
	}

	if nerr := da.notifier.NotifyUpstreamFailure(ae.Code, ae.Message, attempts); nerr != nil && !errors.Is(nerr, errAlertCooldown) {
		log.Printf("⚠️  Failed to send upstream alert: %v", nerr)
	}
}

func (da *DataAggregator) fail(err error, start time.Time) *AggregationError {
	classified := ClassifyError(err)
	now := da.now()
	ae := &AggregationError{
		Code:      classified.Code,
		Message:   classified.Message,
		Status:    classified.Status,
		Cause:     err,
		Duration:  now.Sub(start),
		Timestamp: now,
	}

	da.metrics.observeRequest(ae.Code)
	switch ae.Code {
	case CodeValidation:
	case CodeCanceled:
		log.Printf("Node query abandoned by caller after %s", ae.Duration)
	default:
		log.Printf("❌ Node query failed [%s] after %s: %v", ae.Code, ae.Duration, err)
	}
	return ae
}

// Summarize computes the metadata totals over the full enriched set.
func Summarize(nodes []models.EnrichedNode) models.NodeSummary {
	s := models.NodeSummary{TotalNodes: len(nodes)}
	if len(nodes) == 0 {
		return s
	}

	var sumUptime float64
	for _, n := range nodes {
		if n.IsOnline {
			s.OnlineNodes++
		}
		sumUptime += float64(n.Uptime)
	}
	s.AvgUptime = int64(math.Round(sumUptime / float64(len(nodes))))
	return s
}

// Aggregate builds network statistics over the full enriched set.
func Aggregate(nodes []models.EnrichedNode, now time.Time) models.NetworkStats {
	aggr := models.NetworkStats{
		TotalNodes:  len(nodes),
		Versions:    make(map[string]int),
		LastUpdated: now,
	}

	if len(nodes) == 0 {
		log.Println("No nodes available for aggregation")
		return aggr
	}

	var committed, used, sumUptime, sumHealth float64
	for _, n := range nodes {
		if n.IsOnline {
			aggr.OnlineNodes++
		} else {
			aggr.OfflineNodes++
		}
		if n.IsPublic {
			aggr.PublicNodes++
		} else {
			aggr.PrivateNodes++
		}

		committed += float64(n.StorageCommitted)
		used += float64(n.StorageUsed)
		sumUptime += float64(n.Uptime)
		sumHealth += float64(n.HealthScore)

		label := n.VersionDisplayName
		if label == "" {
			label = "unknown"
		}
		aggr.Versions[label]++
	}

	count := float64(len(nodes))
	aggr.TotalStorageGB = utils.Round2(committed / (1 << 30))
	aggr.UsedStorageGB = utils.Round2(used / (1 << 30))
	aggr.AverageUptime = int64(math.Round(sumUptime / count))
	aggr.AverageHealthScore = utils.Round2(sumHealth / count)

	return aggr
}

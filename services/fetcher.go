package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"podagg/config"
	"podagg/models"
)

// Fetcher pulls the raw pod list from the upstream node under a bounded
// retry-with-backoff policy. Every attempt has its own hard deadline.
type Fetcher struct {
	client     PodsClient
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	metrics    *Metrics
}

func NewFetcher(client PodsClient, cfg *config.Config, metrics *Metrics) *Fetcher {
	maxRetries := cfg.Upstream.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Fetcher{
		client:     client,
		maxRetries: maxRetries,
		timeout:    cfg.FetchTimeoutDuration(),
		baseDelay:  cfg.RetryBaseDelayDuration(),
		sleep:      sleepContext,
		metrics:    metrics,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch returns the full pod list or an *UpstreamError once all attempts fail.
// Malformed payloads are retried like network failures.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.PodWithStats, error) {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		attempts = attempt

		pods, err := f.attempt(ctx)
		if err == nil {
			f.metrics.observeFetch("success")
			if attempt > 1 {
				log.Printf("Upstream fetch succeeded on attempt %d/%d (%d pods)", attempt, f.maxRetries, len(pods))
			}
			return pods, nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) {
			f.metrics.observeFetch("canceled")
			log.Printf("Upstream fetch abandoned on attempt %d/%d: caller canceled", attempt, f.maxRetries)
			return nil, err
		}
		f.metrics.observeFetch(upstreamKindOf(err).String())

		if attempt == f.maxRetries || ctx.Err() != nil {
			break
		}

		delay := f.baseDelay * time.Duration(1<<(attempt-1))
		log.Printf("⚠️  Upstream attempt %d/%d failed: %v (retrying in %s)", attempt, f.maxRetries, err, delay)
		if err := f.sleep(ctx, delay); err != nil {
			break
		}
	}

	log.Printf("❌ Upstream fetch failed after %d attempt(s): %v", attempts, lastErr)
	return nil, &UpstreamError{
		Kind:     upstreamKindOf(lastErr),
		Attempts: attempts,
		Err:      lastErr,
	}
}

// attempt races one upstream call against the per-attempt deadline.
func (f *Fetcher) attempt(ctx context.Context) ([]models.PodWithStats, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)

	go func() {
		raw, err := f.client.GetPodsWithStats(ctx)
		done <- result{raw: raw, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return ParsePods(r.raw)
		}
		// A call cut short by the deadline often fails with a read error.
		if ctx.Err() != nil {
			return nil, f.interrupted(ctx, r.err)
		}
		return nil, r.err
	case <-ctx.Done():
		return nil, f.interrupted(ctx, nil)
	}
}

func (f *Fetcher) interrupted(ctx context.Context, cause error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	if cause != nil {
		return fmt.Errorf("attempt timed out after %s (%v): %w", f.timeout, cause, ctx.Err())
	}
	return fmt.Errorf("attempt timed out after %s: %w", f.timeout, ctx.Err())
}

// ParsePods checks that raw is {"pods": [ {...}, ... ]} and decodes it. Any
// other shape is ErrInvalidResponse.
func ParsePods(raw json.RawMessage) ([]models.PodWithStats, error) {
	var envelope struct {
		Pods json.RawMessage `json:"pods"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	body := bytes.TrimSpace(envelope.Pods)
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("%w: pods is not an array", ErrInvalidResponse)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("%w: pods[%d] is not an object", ErrInvalidResponse, i)
		}
	}

	pods := make([]models.PodWithStats, 0, len(items))
	if err := json.Unmarshal(body, &pods); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return pods, nil
}

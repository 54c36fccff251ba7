package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/oschwald/geoip2-golang"

	"podagg/models"
)

// BatchResolver resolves many IPv4 hosts in one call. Hosts it cannot place
// are simply absent from the result.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, ips []string) (map[string]models.GeoLocation, error)
}

// HTTPGeoResolver talks to the batch geolocation service:
// POST {"ips": [...]} -> {"results": [{ip, lat, lon, city?, country?, countryCode?}]}
type HTTPGeoResolver struct {
	url        string
	httpClient *http.Client
}

func NewHTTPGeoResolver(url string, timeout time.Duration) *HTTPGeoResolver {
	return &HTTPGeoResolver{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type geoBatchRequest struct {
	IPs []string `json:"ips"`
}

type geoBatchResponse struct {
	Results []geoBatchResult `json:"results"`
}

type geoBatchResult struct {
	IP          string  `json:"ip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	City        string  `json:"city,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
}

func (g *HTTPGeoResolver) ResolveBatch(ctx context.Context, ips []string) (map[string]models.GeoLocation, error) {
	body, err := json.Marshal(geoBatchRequest{IPs: ips})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create geo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo api error: %d", resp.StatusCode)
	}

	var apiResp geoBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}

	out := make(map[string]models.GeoLocation, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.IP == "" {
			continue
		}
		out[r.IP] = models.GeoLocation{
			Lat:         r.Lat,
			Lon:         r.Lon,
			City:        r.City,
			Country:     r.Country,
			CountryCode: r.CountryCode,
		}
	}
	return out, nil
}

// GeoIPResolver answers from a local MaxMind City database.
type GeoIPResolver struct {
	db *geoip2.Reader
}

func NewGeoIPResolver(dbPath string) (*GeoIPResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open GeoIP database at %s: %w", dbPath, err)
	}
	return &GeoIPResolver{db: db}, nil
}

func (g *GeoIPResolver) Close() {
	if g != nil && g.db != nil {
		g.db.Close()
	}
}

func (g *GeoIPResolver) ResolveBatch(_ context.Context, ips []string) (map[string]models.GeoLocation, error) {
	out := make(map[string]models.GeoLocation, len(ips))
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		record, err := g.db.City(ip)
		if err != nil {
			continue
		}
		// Unknown networks come back zeroed
		if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
			continue
		}
		out[ipStr] = models.GeoLocation{
			Lat:         record.Location.Latitude,
			Lon:         record.Location.Longitude,
			City:        record.City.Names["en"],
			Country:     record.Country.Names["en"],
			CountryCode: record.Country.IsoCode,
		}
	}
	return out, nil
}

// ChainResolver asks each resolver in turn for the hosts still unresolved.
// It only fails when nothing was resolved and a resolver returned an error.
type ChainResolver struct {
	resolvers []BatchResolver
}

func NewChainResolver(resolvers ...BatchResolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

func (c *ChainResolver) ResolveBatch(ctx context.Context, ips []string) (map[string]models.GeoLocation, error) {
	out := make(map[string]models.GeoLocation, len(ips))
	remaining := ips
	var errs []error

	for _, r := range c.resolvers {
		if len(remaining) == 0 {
			break
		}

		found, err := r.ResolveBatch(ctx, remaining)
		if err != nil {
			log.Printf("Geo resolver %T failed for %d hosts: %v", r, len(remaining), err)
			errs = append(errs, err)
			continue
		}

		next := remaining[:0:0]
		for _, ip := range remaining {
			if loc, ok := found[ip]; ok {
				out[ip] = loc
			} else {
				next = append(next, ip)
			}
		}
		remaining = next
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

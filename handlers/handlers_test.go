package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"podagg/config"
	"podagg/middleware"
	"podagg/models"
	"podagg/services"
)

type envelope struct {
	Success  bool                     `json:"success"`
	Data     json.RawMessage          `json:"data"`
	Error    *models.APIError         `json:"error"`
	Metadata *models.ResponseMetadata `json:"metadata"`
}

func podsJSON(t *testing.T, online ...bool) json.RawMessage {
	t.Helper()
	now := time.Now().Unix()
	resp := models.PodsWithStatsResponse{TotalCount: len(online)}
	for i, on := range online {
		lastSeen := now - 3600
		if on {
			lastSeen = now
		}
		resp.Pods = append(resp.Pods, models.PodWithStats{
			Address:           fmt.Sprintf("not-geolocated-%d:9001", i),
			Pubkey:            fmt.Sprintf("pk%d", i),
			LastSeenTimestamp: lastSeen,
			Uptime:            int64(60 * (i + 1)),
			Version:           "0.8.0",
		})
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	return raw
}

func newTestServer(t *testing.T, client services.PodsClient, mutate func(*config.Config)) *echo.Echo {
	t.Helper()
	cfg := config.Default()
	cfg.Upstream.RetryBaseDelayMs = 1
	cfg.Upstream.TimeoutMs = 1000
	if mutate != nil {
		mutate(cfg)
	}

	cache := services.NewCacheService(cfg, nil, nil)
	t.Cleanup(cache.Stop)

	fetcher := services.NewFetcher(client, cfg, nil)
	aggregator := services.NewDataAggregator(cfg, fetcher, nil, cache, nil, nil)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(cfg.Server.DebugErrors)
	e.Use(middleware.RecoverMiddleware())

	RegisterRoutes(e, NewHandler(cfg, aggregator, cache, services.NewPRPCClient(cfg)), NewCacheHandlers(cache), http.NotFoundHandler())
	return e
}

func do(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestGetNodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl)
	client.EXPECT().GetPodsWithStats(gomock.Any()).Return(podsJSON(t, true, false, true, false, true), nil)

	e := newTestServer(t, client, nil)
	rec, env := do(t, e, http.MethodGet, "/api/nodes?status=active&sortBy=uptime&sortOrder=asc")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	require.NotNil(t, env.Metadata)
	assert.Equal(t, 3, env.Metadata.Count)
	assert.Equal(t, 5, env.Metadata.TotalNodes)
	assert.Equal(t, 3, env.Metadata.OnlineNodes)
	assert.Equal(t, int64(180), env.Metadata.AvgUptime)
	assert.False(t, env.Metadata.CacheHit)

	var nodes []models.EnrichedNode
	require.NoError(t, json.Unmarshal(env.Data, &nodes))
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"pk0", "pk2", "pk4"}, []string{nodes[0].Pubkey, nodes[1].Pubkey, nodes[2].Pubkey})
	assert.Equal(t, "current", nodes[0].VersionStatus)

	// identical query is served from the response cache
	rec, env = do(t, e, http.MethodGet, "/api/nodes?sortOrder=asc&sortBy=uptime&status=active")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Metadata.CacheHit)
}

func TestGetNodesEmptyPageIsArray(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl)
	client.EXPECT().GetPodsWithStats(gomock.Any()).Return(podsJSON(t, true), nil)

	rec, env := do(t, newTestServer(t, client, nil), http.MethodGet, "/api/nodes?offset=50")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
	assert.Equal(t, 1, env.Metadata.TotalNodes)
}

func TestGetNodesValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl) // never called

	tests := []struct {
		name    string
		debug   bool
		details bool
	}{
		{"details_hidden", false, false},
		{"details_in_debug", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, client, func(c *config.Config) { c.Server.DebugErrors = tt.debug })
			rec, env := do(t, e, http.MethodGet, "/api/nodes?limit=5000")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, services.CodeValidation, env.Error.Code)
			assert.Nil(t, env.Metadata)
			if tt.details {
				assert.Contains(t, env.Error.Details, "duration")
				assert.Contains(t, env.Error.Details, "timestamp")
			} else {
				assert.Nil(t, env.Error.Details)
			}
		})
	}
}

func TestGetNodesUpstreamDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl)
	client.EXPECT().GetPodsWithStats(gomock.Any()).Return(nil, syscall.ECONNREFUSED).Times(3)

	rec, env := do(t, newTestServer(t, client, nil), http.MethodGet, "/api/nodes")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeConnectionFailed, env.Error.Code)
}

func TestGetNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl)
	client.EXPECT().GetPodsWithStats(gomock.Any()).Return(podsJSON(t, true, false), nil)

	e := newTestServer(t, client, nil)

	rec, env := do(t, e, http.MethodGet, "/api/nodes/pk1")
	require.Equal(t, http.StatusOK, rec.Code)
	var node models.EnrichedNode
	require.NoError(t, json.Unmarshal(env.Data, &node))
	assert.Equal(t, "pk1", node.Pubkey)
	assert.False(t, node.IsOnline)

	rec, env = do(t, e, http.MethodGet, "/api/nodes/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeNotFound, env.Error.Code)
}

func TestGetStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl)
	client.EXPECT().GetPodsWithStats(gomock.Any()).Return(podsJSON(t, true, false, true), nil)

	rec, env := do(t, newTestServer(t, client, nil), http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.NetworkStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3, stats.TotalNodes)
	assert.Equal(t, 2, stats.OnlineNodes)
	assert.Equal(t, 1, stats.OfflineNodes)
}

func TestSystemEndpoints(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := newTestServer(t, services.NewMockPodsClient(ctrl), nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec, env := do(t, e, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "in-memory", status["cacheMode"])
	assert.Equal(t, "127.0.0.1:6000", status["upstream"])
}

func TestCacheEndpoints(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := services.NewMockPodsClient(ctrl)
	client.EXPECT().GetPodsWithStats(gomock.Any()).Return(podsJSON(t, true), nil).Times(2)

	e := newTestServer(t, client, nil)
	do(t, e, http.MethodGet, "/api/nodes")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "in-memory", status["mode"])
	assert.Equal(t, false, status["healthy"])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed":1`)

	// cleared, so the next query goes upstream again
	_, env := do(t, e, http.MethodGet, "/api/nodes")
	assert.False(t, env.Metadata.CacheHit)
}

func TestFrameworkErrorsUseEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := newTestServer(t, services.NewMockPodsClient(ctrl), nil)

	rec, env := do(t, e, http.MethodGet, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeNotFound, env.Error.Code)

	rec, env = do(t, e, http.MethodDelete, "/api/nodes")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeMethodNotAllowed, env.Error.Code)
}

func TestRecoveredPanicUsesEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := newTestServer(t, services.NewMockPodsClient(ctrl), nil)
	e.GET("/panic", func(c echo.Context) error { panic("boom") })

	rec, env := do(t, e, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, services.CodeInternal, env.Error.Code)
}

package models

// APIResponse is the envelope returned by every /api endpoint.
type APIResponse struct {
	Success  bool              `json:"success"`
	Data     any               `json:"data,omitempty"`
	Error    *APIError         `json:"error,omitempty"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ResponseMetadata struct {
	Count       int    `json:"count"`
	Timestamp   string `json:"timestamp"`
	CacheHit    bool   `json:"cacheHit"`
	TotalNodes  int    `json:"totalNodes"`
	OnlineNodes int    `json:"onlineNodes"`
	AvgUptime   int64  `json:"avgUptime"`
}

// CachedResponse is what the response cache stores per query: the final page
// and the summary of the set it was cut from.
type CachedResponse struct {
	Data    []EnrichedNode `json:"data"`
	Summary NodeSummary    `json:"summary"`
}

// NodesResult is one answered node query.
type NodesResult struct {
	Data     []EnrichedNode
	Metadata ResponseMetadata
}

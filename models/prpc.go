package models

import "encoding/json"

// JSON-RPC 2.0 Request
type RPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// JSON-RPC 2.0 Response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// JSON-RPC 2.0 Error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// get-version response
type VersionResponse struct {
	Version string `json:"version"`
}

// get-pods-with-stats response
type PodsWithStatsResponse struct {
	Pods       []PodWithStats `json:"pods"`
	TotalCount int            `json:"total_count"`
}

// PodWithStats is one raw node record as reported by the upstream pRPC node.
// Records are never modified after decoding.
type PodWithStats struct {
	Address             string  `json:"address"` // "host[:port]"
	Pubkey              string  `json:"pubkey"`
	IsPublic            bool    `json:"is_public"`
	LastSeenTimestamp   int64   `json:"last_seen_timestamp"` // unix seconds
	RpcPort             int     `json:"rpc_port"`
	StorageCommitted    int64   `json:"storage_committed"`
	StorageUsed         int64   `json:"storage_used"`
	StorageUsagePercent float64 `json:"storage_usage_percent"` // ratio 0..1
	Uptime              int64   `json:"uptime"`                // seconds
	Version             string  `json:"version"`
}

package models

import "time"

// NetworkStats represents aggregated network statistics
type NetworkStats struct {
	TotalNodes   int `json:"total_nodes"`
	OnlineNodes  int `json:"online_nodes"`
	OfflineNodes int `json:"offline_nodes"`
	PublicNodes  int `json:"public_nodes"`
	PrivateNodes int `json:"private_nodes"`

	TotalStorageGB float64 `json:"total_storage_gb"` // committed
	UsedStorageGB  float64 `json:"used_storage_gb"`

	AverageUptime      int64   `json:"average_uptime"` // seconds
	AverageHealthScore float64 `json:"average_health_score"`

	// Node count per version display name
	Versions map[string]int `json:"versions"`

	LastUpdated time.Time `json:"last_updated"`
}

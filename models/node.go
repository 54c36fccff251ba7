package models

// GeoLocation is the resolved position of one host address. A single value is
// shared by every node record reporting that host.
type GeoLocation struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	City        string  `json:"city,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
}

// EnrichedNode is a raw pod record plus everything derived from it in one
// fetch cycle.
type EnrichedNode struct {
	PodWithStats

	// Derived
	IsOnline           bool    `json:"isOnline"`
	LastSeenISO        string  `json:"lastSeenISO"`
	StorageUtilization string  `json:"storageUtilization"` // e.g. "42.17%"
	UptimeHours        int64   `json:"uptimeHours"`
	UptimeDays         int64   `json:"uptimeDays"`
	StorageCapacityGB  float64 `json:"storageCapacityGB"`
	StorageUsedMB      float64 `json:"storageUsedMB"`
	VersionDisplayName string  `json:"versionDisplayName"`
	HealthScore        int     `json:"healthScore"` // 0-100

	VersionStatus string `json:"versionStatus"`
	UpgradeNeeded bool   `json:"upgradeNeeded"`

	Location *GeoLocation `json:"location,omitempty"`
}

// NodeSummary holds network-wide figures computed over the full enriched set,
// before any filtering or pagination.
type NodeSummary struct {
	TotalNodes  int   `json:"totalNodes"`
	OnlineNodes int   `json:"onlineNodes"`
	AvgUptime   int64 `json:"avgUptime"` // seconds
}

package models

// Query parameter limits.
const (
	MinLimit     = 1
	MaxLimit     = 1000
	DefaultLimit = 100
)

// Status filter values.
const (
	StatusAll     = "all"
	StatusActive  = "active"
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusPublic  = "public"
	StatusPrivate = "private"
)

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Sortable attributes.
const (
	SortAddress             = "address"
	SortPubkey              = "pubkey"
	SortUptime              = "uptime"
	SortStorageUsagePercent = "storage_usage_percent"
	SortStorageUsed         = "storage_used"
	SortStorageCommitted    = "storage_committed"
	SortLastSeenTimestamp   = "last_seen_timestamp"
	SortVersion             = "version"
	SortRpcPort             = "rpc_port"
	SortIsPublic            = "is_public"
)

var ValidStatuses = []string{StatusActive, StatusOnline, StatusOffline, StatusPublic, StatusPrivate, StatusAll}

var ValidSortFields = []string{
	SortAddress, SortPubkey, SortUptime, SortStorageUsagePercent, SortStorageUsed,
	SortStorageCommitted, SortLastSeenTimestamp, SortVersion, SortRpcPort, SortIsPublic,
}

var ValidSortOrders = []string{SortAsc, SortDesc}

// QueryParams are the caller-supplied view options. Nil/empty means absent.
type QueryParams struct {
	Limit     *int
	Offset    *int
	Status    string
	SortBy    string
	SortOrder string
}

// Paginated reports whether either pagination parameter was supplied.
func (q QueryParams) Paginated() bool {
	return q.Limit != nil || q.Offset != nil
}

// ResolvedQuery is QueryParams with every downstream default applied. Its JSON
// form is the response cache key, so field order here is part of the key.
type ResolvedQuery struct {
	Status    string `json:"status"`
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
	Paginated bool   `json:"paginated"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset"`
}

package services

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"podagg/models"
)

// ParseQuery reads and validates the node query parameters. Empty values are
// treated as absent. Out-of-range values are rejected, never clamped.
func ParseQuery(values url.Values) (models.QueryParams, error) {
	var params models.QueryParams

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return params, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be an integer between %d and %d", models.MinLimit, models.MaxLimit)}
		}
		params.Limit = &n
	}

	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return params, &ValidationError{Field: "offset", Message: "must be a non-negative integer"}
		}
		params.Offset = &n
	}

	params.Status = strings.TrimSpace(values.Get("status"))
	params.SortBy = strings.TrimSpace(values.Get("sortBy"))
	params.SortOrder = strings.TrimSpace(values.Get("sortOrder"))

	return params, ValidateQuery(params)
}

func ValidateQuery(params models.QueryParams) error {
	if params.Limit != nil && (*params.Limit < models.MinLimit || *params.Limit > models.MaxLimit) {
		return &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between %d and %d", models.MinLimit, models.MaxLimit)}
	}
	if params.Offset != nil && *params.Offset < 0 {
		return &ValidationError{Field: "offset", Message: "must be a non-negative integer"}
	}
	if params.Status != "" && !slices.Contains(models.ValidStatuses, params.Status) {
		return &ValidationError{Field: "status", Message: "must be one of " + strings.Join(models.ValidStatuses, ", ")}
	}
	if params.SortBy != "" && !slices.Contains(models.ValidSortFields, params.SortBy) {
		return &ValidationError{Field: "sortBy", Message: "must be one of " + strings.Join(models.ValidSortFields, ", ")}
	}
	if params.SortOrder != "" && !slices.Contains(models.ValidSortOrders, params.SortOrder) {
		return &ValidationError{Field: "sortOrder", Message: "must be asc or desc"}
	}
	return nil
}

// ResolveQuery applies every default so that equivalent requests resolve to
// the same value.
func ResolveQuery(params models.QueryParams) models.ResolvedQuery {
	rq := models.ResolvedQuery{Status: params.Status}
	if rq.Status == "" {
		rq.Status = models.StatusAll
	}

	if params.SortBy != "" {
		rq.SortBy = params.SortBy
		rq.SortOrder = params.SortOrder
		if rq.SortOrder == "" {
			rq.SortOrder = models.SortDesc
		}
	}

	if params.Paginated() {
		rq.Paginated = true
		rq.Limit = models.DefaultLimit
		if params.Limit != nil {
			rq.Limit = *params.Limit
		}
		if params.Offset != nil {
			rq.Offset = *params.Offset
		}
	}

	return rq
}

// CacheKey is the canonical JSON of a resolved query.
func CacheKey(rq models.ResolvedQuery) string {
	b, _ := json.Marshal(rq)
	return string(b)
}

// ProcessNodes filters, sorts and paginates, in that order. The input slice
// is not modified.
func ProcessNodes(nodes []models.EnrichedNode, rq models.ResolvedQuery) []models.EnrichedNode {
	out := filterNodes(nodes, rq.Status)

	if rq.SortBy != "" {
		sortNodes(out, rq.SortBy, rq.SortOrder)
	}

	if rq.Paginated {
		out = paginate(out, rq.Offset, rq.Limit)
	}
	return out
}

// filterNodes keeps online nodes for "active" and offline nodes for every
// other status except "all".
func filterNodes(nodes []models.EnrichedNode, status string) []models.EnrichedNode {
	out := make([]models.EnrichedNode, 0, len(nodes))
	for _, n := range nodes {
		switch status {
		case "", models.StatusAll:
			out = append(out, n)
		case models.StatusActive:
			if n.IsOnline {
				out = append(out, n)
			}
		default:
			if !n.IsOnline {
				out = append(out, n)
			}
		}
	}
	return out
}

func sortNodes(nodes []models.EnrichedNode, field, order string) {
	col := collate.New(language.English)
	desc := order != models.SortAsc

	sort.SliceStable(nodes, func(i, j int) bool {
		c := compareField(col, &nodes[i], &nodes[j], field)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareField(col *collate.Collator, a, b *models.EnrichedNode, field string) int {
	switch field {
	case models.SortAddress:
		return col.CompareString(a.Address, b.Address)
	case models.SortPubkey:
		return col.CompareString(a.Pubkey, b.Pubkey)
	case models.SortVersion:
		return col.CompareString(a.Version, b.Version)
	case models.SortUptime:
		return cmp.Compare(a.Uptime, b.Uptime)
	case models.SortStorageUsagePercent:
		return cmp.Compare(a.StorageUsagePercent, b.StorageUsagePercent)
	case models.SortStorageUsed:
		return cmp.Compare(a.StorageUsed, b.StorageUsed)
	case models.SortStorageCommitted:
		return cmp.Compare(a.StorageCommitted, b.StorageCommitted)
	case models.SortLastSeenTimestamp:
		return cmp.Compare(a.LastSeenTimestamp, b.LastSeenTimestamp)
	case models.SortRpcPort:
		return cmp.Compare(a.RpcPort, b.RpcPort)
	case models.SortIsPublic:
		return cmp.Compare(boolInt(a.IsPublic), boolInt(b.IsPublic))
	default:
		return 0
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func paginate(nodes []models.EnrichedNode, offset, limit int) []models.EnrichedNode {
	if offset >= len(nodes) {
		return []models.EnrichedNode{}
	}
	end := offset + limit
	if end > len(nodes) {
		end = len(nodes)
	}
	return nodes[offset:end]
}

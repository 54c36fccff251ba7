package utils

import (
	"math"
	"net"
	"regexp"
	"strconv"
	"time"

	"podagg/models"
)

const (
	// A node is online if it gossiped within this window.
	onlineWindowMs = 300_000

	bytesPerGiB = 1 << 30
	bytesPerMiB = 1 << 20

	maxVersionLabel = 20

	isoMillis = "2006-01-02T15:04:05.000Z"
)

// Build prefixes reported by pods, e.g. "v0.8.0", "pod-v0.8.0", "xandeum-pod-0.8.0".
var versionPrefix = regexp.MustCompile(`^(?i)(?:xandeum[-_ ]?)?(?:pod[-_ ]?)?v?(\d)`)

// EnrichNode derives every computed field of a raw pod record. Location is
// left empty; it is filled by the geolocation step.
func EnrichNode(pod models.PodWithStats, now time.Time, versions *VersionConfig) models.EnrichedNode {
	online := IsOnline(pod.LastSeenTimestamp, now)
	uptimeDays := pod.Uptime / 86400

	status, needsUpgrade, _ := CheckVersionStatus(pod.Version, versions)

	return models.EnrichedNode{
		PodWithStats:       pod,
		IsOnline:           online,
		LastSeenISO:        time.Unix(pod.LastSeenTimestamp, 0).UTC().Format(isoMillis),
		StorageUtilization: FormatUtilization(pod.StorageUsagePercent),
		UptimeHours:        pod.Uptime / 3600,
		UptimeDays:         uptimeDays,
		StorageCapacityGB:  Round2(float64(pod.StorageCommitted) / bytesPerGiB),
		StorageUsedMB:      Round2(float64(pod.StorageUsed) / bytesPerMiB),
		VersionDisplayName: VersionDisplayName(pod.Version),
		HealthScore:        HealthScore(online, pod.IsPublic, uptimeDays, pod.StorageUsagePercent),
		VersionStatus:      status,
		UpgradeNeeded:      needsUpgrade,
	}
}

// IsOnline reports whether lastSeen (unix seconds) falls inside the liveness window.
func IsOnline(lastSeen int64, now time.Time) bool {
	return now.UnixMilli()-lastSeen*1000 < onlineWindowMs
}

// HealthScore computes the 0-100 composite score. Each term is clamped on its
// own before summing and the sum is clamped again.
func HealthScore(online, public bool, uptimeDays int64, usageRatio float64) int {
	var score float64
	if online {
		score += 30
	}
	if public {
		score += 10
	}
	score += clamp(float64(uptimeDays), 0, 40)
	score += clamp((1-usageRatio)*20, 0, 20)

	return int(math.Min(100, roundHalfUp(score)))
}

// VersionDisplayName strips the build prefix and caps the label length.
func VersionDisplayName(v string) string {
	label := versionPrefix.ReplaceAllString(v, "$1")
	runes := []rune(label)
	if len(runes) > maxVersionLabel {
		runes = runes[:maxVersionLabel]
	}
	return string(runes)
}

// FormatUtilization renders a 0..1 usage ratio as a percentage string.
func FormatUtilization(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 2, 64) + "%"
}

// Round2 rounds to two decimals, halves away from negative infinity.
func Round2(v float64) float64 {
	return roundHalfUp(v*100) / 100
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var ipv4Pattern = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// ExtractIPv4 returns the host part of "host[:port]" if it is a valid dotted
// IPv4 address.
func ExtractIPv4(address string) (string, bool) {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}

	if !IsValidIPv4(host) {
		return "", false
	}
	return host, true
}

// IsValidIPv4 checks dotted-quad syntax and that every octet is 0-255.
func IsValidIPv4(host string) bool {
	m := ipv4Pattern.FindStringSubmatch(host)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"podagg/models"
)

func TestIsOnline(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		lastSeen int64
		want     bool
	}{
		{"just_seen", now.Unix(), true},
		{"four_minutes_ago", now.Unix() - 240, true},
		{"one_ms_inside_window", now.Unix() - 299, true},
		{"exactly_five_minutes", now.Unix() - 300, false},
		{"an_hour_ago", now.Unix() - 3600, false},
		{"future_timestamp", now.Unix() + 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOnline(tt.lastSeen, now))
		})
	}
}

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name       string
		online     bool
		public     bool
		uptimeDays int64
		ratio      float64
		want       int
	}{
		{"all_max", true, true, 400, 0, 100},
		{"zero_uptime_full_disk_online_public", true, true, 0, 1, 40},
		{"zero_uptime_full_disk_offline_private", false, false, 0, 1, 0},
		{"offline_but_long_uptime_still_scores", false, false, 90, 1, 40},
		{"half_disk", true, false, 10, 0.5, 50},
		{"rounds_half_up", false, false, 0, 0.975, 1},
		{"overfull_disk_term_not_negative", true, false, 0, 1.5, 30},
		{"negative_ratio_term_capped", false, false, 0, -1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HealthScore(tt.online, tt.public, tt.uptimeDays, tt.ratio))
		})
	}
}

func TestHealthScoreBounds(t *testing.T) {
	ratios := []float64{-2, 0, 0.01, 0.33, 0.5, 0.999, 1, 3}
	days := []int64{0, 1, 39, 40, 41, 10_000}

	for _, online := range []bool{true, false} {
		for _, public := range []bool{true, false} {
			for _, d := range days {
				for _, r := range ratios {
					score := HealthScore(online, public, d, r)
					assert.GreaterOrEqual(t, score, 0)
					assert.LessOrEqual(t, score, 100)
				}
			}
		}
	}
}

func TestEnrichNode(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pod := models.PodWithStats{
		Address:             "192.0.2.10:9001",
		Pubkey:              "PubKeyA",
		IsPublic:            true,
		LastSeenTimestamp:   now.Unix() - 30,
		RpcPort:             6000,
		StorageCommitted:    3 * (1 << 30),
		StorageUsed:         5 * (1 << 19), // 2.5 MiB
		StorageUsagePercent: 0.25,
		Uptime:              2*86400 + 5*3600 + 59,
		Version:             "v0.8.0",
	}

	n := EnrichNode(pod, now, nil)

	assert.Equal(t, pod, n.PodWithStats)
	assert.True(t, n.IsOnline)
	assert.Equal(t, "2025-06-01T11:59:30.000Z", n.LastSeenISO)
	assert.Equal(t, "25.00%", n.StorageUtilization)
	assert.Equal(t, int64(53), n.UptimeHours)
	assert.Equal(t, int64(2), n.UptimeDays)
	assert.Equal(t, 3.0, n.StorageCapacityGB)
	assert.Equal(t, 2.5, n.StorageUsedMB)
	assert.Equal(t, "0.8.0", n.VersionDisplayName)
	// 30 online + 10 public + 2 days + 15 free
	assert.Equal(t, 57, n.HealthScore)
	assert.Equal(t, "current", n.VersionStatus)
	assert.False(t, n.UpgradeNeeded)
	assert.Nil(t, n.Location)
}

func TestUptimeFieldsDeriveFromRawSeconds(t *testing.T) {
	now := time.Now()
	for _, uptime := range []int64{0, 3599, 3600, 86399, 86400, 90000, 1_000_000} {
		n := EnrichNode(models.PodWithStats{Uptime: uptime}, now, nil)
		assert.Equal(t, uptime/3600, n.UptimeHours)
		assert.Equal(t, uptime/86400, n.UptimeDays)
	}
}

func TestStorageRounding(t *testing.T) {
	assert.Equal(t, 1.5, Round2(1.499999))
	assert.Equal(t, 0.01, Round2(0.005))
	assert.Equal(t, 0.0, Round2(0.004))

	n := EnrichNode(models.PodWithStats{StorageCommitted: 1_000_000_000, StorageUsed: 123_456_789}, time.Now(), nil)
	assert.Equal(t, 0.93, n.StorageCapacityGB)
	assert.Equal(t, 117.74, n.StorageUsedMB)
}

func TestVersionDisplayName(t *testing.T) {
	tests := map[string]string{
		"v0.8.0":                               "0.8.0",
		"pod-v0.7.3":                           "0.7.3",
		"Xandeum-Pod-0.8.1":                    "0.8.1",
		"0.8.0-trynet.20251212183600.9eea72e": "0.8.0-trynet.2025121",
		"unknown":                              "unknown",
		"":                                     "",
		"a-very-long-custom-build-name-here":   "a-very-long-custom-b",
	}

	for in, want := range tests {
		assert.Equal(t, want, VersionDisplayName(in), in)
	}
}

func TestExtractIPv4(t *testing.T) {
	tests := []struct {
		address string
		host    string
		ok      bool
	}{
		{"192.0.2.1:9001", "192.0.2.1", true},
		{"192.0.2.1", "192.0.2.1", true},
		{"0.0.0.0:1", "0.0.0.0", true},
		{"256.1.1.1:9001", "", false},
		{"10.0.0:9001", "", false},
		{"example.com:9001", "", false},
		{"[2001:db8::1]:9001", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			host, ok := ExtractIPv4(tt.address)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.host, host)
		})
	}
}

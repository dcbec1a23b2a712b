package bunny

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// PullZoneStats represents aggregated statistics for a pull zone
type PullZoneStats struct {
	PullZoneID       int64
	PullZoneName     string
	TotalRequests    int64
	TotalBandwidth   int64
	TotalCacheHits   int64
	TotalCacheMisses int64
	CacheHitRate     float64
	StartDate        time.Time
	EndDate          time.Time
}

// BandwidthEntry is one zone's share of total bandwidth over a period
type BandwidthEntry struct {
	ZoneID     int64
	ZoneName   string
	Bandwidth  int64
	Requests   int64
	Percentage float64
}

type statsResponse struct {
	TotalRequestsServed int64   `json:"TotalRequestsServed"`
	TotalBandwidthUsed  int64   `json:"TotalBandwidthUsed"`
	CacheHitRate        float64 `json:"CacheHitRate"`
}

// GetPullZoneStats retrieves statistics for one pull zone over [from, to].
// API: GET /statistics?pullZone={id}
func (c *Client) GetPullZoneStats(ctx context.Context, pullZoneID int64, from, to time.Time) (*PullZoneStats, error) {
	if pullZoneID <= 0 {
		return nil, fmt.Errorf("pull zone ID must be positive")
	}

	path := fmt.Sprintf("/statistics?pullZone=%d&dateFrom=%s&dateTo=%s",
		pullZoneID, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var resp statsResponse
	if err := c.get(ctx, "get_statistics", path, &resp); err != nil {
		return nil, err
	}

	stats := &PullZoneStats{
		PullZoneID:     pullZoneID,
		TotalRequests:  resp.TotalRequestsServed,
		TotalBandwidth: resp.TotalBandwidthUsed,
		CacheHitRate:   resp.CacheHitRate,
		StartDate:      from,
		EndDate:        to,
	}

	if zone, err := c.GetPullZone(ctx, pullZoneID); err == nil && zone != nil {
		stats.PullZoneName = zone.Name
	}
	return stats, nil
}

// TopBandwidth returns the top-n pull zones by bandwidth over [from, to],
// sorted descending, with each entry's share of the total.
func (c *Client) TopBandwidth(ctx context.Context, n int, from, to time.Time) ([]BandwidthEntry, error) {
	zones, err := c.ListPullZones(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]BandwidthEntry, 0, len(zones))
	var total int64
	for _, zone := range zones {
		stats, err := c.GetPullZoneStats(ctx, zone.ID, from, to)
		if err != nil {
			c.logger.WithError(err).Warnf("skipping stats for pull zone %d", zone.ID)
			continue
		}
		entries = append(entries, BandwidthEntry{
			ZoneID:    zone.ID,
			ZoneName:  zone.Name,
			Bandwidth: stats.TotalBandwidth,
			Requests:  stats.TotalRequests,
		})
		total += stats.TotalBandwidth
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Bandwidth > entries[j].Bandwidth
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	if total > 0 {
		for i := range entries {
			entries[i].Percentage = float64(entries[i].Bandwidth) / float64(total) * 100
		}
	}
	return entries, nil
}

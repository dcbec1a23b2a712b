package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mordenhost/whm2bunny/pkg/bunny"
	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/observability"
	"github.com/mordenhost/whm2bunny/pkg/state"
)

// bandwidthAlertSchedule checks for traffic spikes at the top of each hour.
const bandwidthAlertSchedule = "0 * * * *"

// statsAPI is the subset of the Bunny client the scheduler reads from.
type statsAPI interface {
	ListPullZones(ctx context.Context) ([]bunny.PullZone, error)
	GetPullZoneStats(ctx context.Context, pullZoneID int64, from, to time.Time) (*bunny.PullZoneStats, error)
	TopBandwidth(ctx context.Context, n int, from, to time.Time) ([]bunny.BandwidthEntry, error)
}

// reporter is the notifier surface the scheduler sends through.
type reporter interface {
	IsEnabled() bool
	SendRaw(ctx context.Context, message string) error
	NotifyBandwidthAlert(ctx context.Context, domain string, percentIncrease float64) error
}

// Scheduler owns the cron jobs for summaries and bandwidth alerts.
type Scheduler struct {
	cron     *cron.Cron
	client   statsAPI
	notifier reporter
	states   *state.Manager
	cfg      config.TelegramSummaryConfig
	location *time.Location
	logger   *observability.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler builds a scheduler from the summary config. The configured
// timezone must resolve; an empty one falls back to UTC.
func NewScheduler(cfg config.TelegramSummaryConfig, client statsAPI, n reporter, states *state.Manager, logger *observability.Logger) (*Scheduler, error) {
	location := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid summary timezone %q: %w", cfg.Timezone, err)
		}
		location = loc
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		client:   client,
		notifier: n,
		states:   states,
		cfg:      cfg,
		location: location,
		logger:   logger,
	}, nil
}

// Start registers the cron jobs and starts the scheduler. It is a no-op
// when summaries are disabled or the notifier cannot send.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.cfg.Enabled || !s.notifier.IsEnabled() {
		s.logger.Info("telegram summaries disabled, scheduler not starting")
		return nil
	}

	daily := s.cfg.Schedule
	if daily == "" {
		daily = "0 9 * * *"
	}
	if _, err := s.cron.AddFunc(daily, func() { s.RunDailySummary(context.Background()) }); err != nil {
		return fmt.Errorf("failed to add daily summary job: %w", err)
	}

	weekly := s.cfg.WeeklySchedule
	if weekly == "" {
		weekly = "0 9 * * 1"
	}
	if _, err := s.cron.AddFunc(weekly, func() { s.RunWeeklySummary(context.Background()) }); err != nil {
		return fmt.Errorf("failed to add weekly summary job: %w", err)
	}

	if _, err := s.cron.AddFunc(bandwidthAlertSchedule, func() { s.CheckBandwidthAlerts(context.Background()) }); err != nil {
		return fmt.Errorf("failed to add bandwidth alert job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.WithFields(map[string]interface{}{
		"daily_schedule":  daily,
		"weekly_schedule": weekly,
		"timezone":        s.location.String(),
	}).Info("summary scheduler started")
	return nil
}

// Stop stops the cron scheduler and waits for running jobs, bounded to ten
// seconds.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("scheduler stop timed out")
	}
	s.running = false
	s.logger.Info("summary scheduler stopped")
}

// RunDailySummary reports yesterday's traffic and the provisioning state
// counts.
func (s *Scheduler) RunDailySummary(ctx context.Context) {
	s.logger.Info("running daily summary")

	now := time.Now().In(s.location)
	yesterday := now.AddDate(0, 0, -1)
	from := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, s.location)
	to := from.Add(24*time.Hour - time.Second)

	entries, err := s.client.TopBandwidth(ctx, 0, from, to)
	if err != nil {
		s.logger.WithError(err).Error("failed to collect stats for daily summary")
		return
	}

	message := s.formatSummary("📊 <b>Daily Summary</b> - "+yesterday.Format("Jan 2, 2006"), entries, s.topN(5), "")
	if err := s.notifier.SendRaw(ctx, message); err != nil {
		s.logger.WithError(err).Error("failed to send daily summary")
		return
	}
	s.logger.Info("daily summary sent")
}

// RunWeeklySummary reports last week's traffic with a comparison against the
// week before.
func (s *Scheduler) RunWeeklySummary(ctx context.Context) {
	s.logger.Info("running weekly summary")

	now := time.Now().In(s.location)
	daysSinceMonday := (int(now.Weekday()) - 1 + 7) % 7
	lastMonday := now.AddDate(0, 0, -daysSinceMonday-7)
	from := time.Date(lastMonday.Year(), lastMonday.Month(), lastMonday.Day(), 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 0, 7).Add(-time.Second)

	entries, err := s.client.TopBandwidth(ctx, 0, from, to)
	if err != nil {
		s.logger.WithError(err).Error("failed to collect stats for weekly summary")
		return
	}

	prevEntries, err := s.client.TopBandwidth(ctx, 0, from.AddDate(0, 0, -7), from.Add(-time.Second))
	change := ""
	if err == nil {
		var current, previous int64
		for _, e := range entries {
			current += e.Bandwidth
		}
		for _, e := range prevEntries {
			previous += e.Bandwidth
		}
		if previous > 0 {
			pct := float64(current-previous) / float64(previous) * 100
			change = fmt.Sprintf("%+.0f%% vs last week", pct)
		}
	}

	_, week := from.ISOWeek()
	title := fmt.Sprintf("📊 <b>Weekly Summary</b> - Week %d, %d", week, from.Year())
	message := s.formatSummary(title, entries, s.topN(10), change)
	if err := s.notifier.SendRaw(ctx, message); err != nil {
		s.logger.WithError(err).Error("failed to send weekly summary")
		return
	}
	s.logger.Info("weekly summary sent")
}

// CheckBandwidthAlerts compares each zone's traffic today against yesterday
// and alerts on spikes past the configured threshold.
func (s *Scheduler) CheckBandwidthAlerts(ctx context.Context) {
	threshold := float64(s.cfg.BandwidthAlertThreshold)
	if threshold <= 0 {
		threshold = 50
	}

	zones, err := s.client.ListPullZones(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to list pull zones for bandwidth check")
		return
	}

	now := time.Now().In(s.location)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	for _, zone := range zones {
		current, err := s.client.GetPullZoneStats(ctx, zone.ID, todayStart, now)
		if err != nil {
			continue
		}
		previous, err := s.client.GetPullZoneStats(ctx, zone.ID, yesterdayStart, todayStart)
		if err != nil || previous.TotalBandwidth == 0 {
			continue
		}

		increase := float64(current.TotalBandwidth-previous.TotalBandwidth) / float64(previous.TotalBandwidth) * 100
		if increase >= threshold {
			s.logger.WithFields(map[string]interface{}{
				"zone":     zone.Name,
				"increase": increase,
			}).Warn("bandwidth spike detected")
			if err := s.notifier.NotifyBandwidthAlert(ctx, zone.Name, increase); err != nil {
				s.logger.WithError(err).Error("failed to send bandwidth alert")
			}
		}
	}
}

func (s *Scheduler) topN(fallback int) int {
	if s.cfg.IncludeTopBandwidth > 0 {
		return s.cfg.IncludeTopBandwidth
	}
	return fallback
}

func (s *Scheduler) formatSummary(title string, entries []bunny.BandwidthEntry, topN int, change string) string {
	var totalBandwidth, totalRequests int64
	for _, e := range entries {
		totalBandwidth += e.Bandwidth
		totalRequests += e.Requests
	}

	message := fmt.Sprintf("%s\n\n📈 <b>Total Bandwidth:</b> %.2f GB\n📈 <b>Total Requests:</b> %s",
		title, gigabytes(totalBandwidth), formatCount(totalRequests))
	if change != "" {
		message += "\n📈 <b>Bandwidth Change:</b> " + change
	}

	if s.states != nil {
		counts := s.states.CountByStatus()
		message += fmt.Sprintf("\n🌐 <b>Domains:</b> %d provisioned, %d failed", counts.Success, counts.Failed)
	}

	if topN > len(entries) {
		topN = len(entries)
	}
	if topN > 0 {
		message += fmt.Sprintf("\n\n🔝 <b>Top %d Domains:</b>", topN)
		for i, e := range entries[:topN] {
			message += fmt.Sprintf("\n%d. %s - %.2f GB (%.0f%%)", i+1, e.ZoneName, gigabytes(e.Bandwidth), e.Percentage)
		}
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	message += "\n\n🖥️ <b>Server:</b> " + host
	return message
}

func gigabytes(b int64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}

// formatCount renders large counts with K/M/B suffixes.
func formatCount(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

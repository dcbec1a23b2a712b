package scheduler

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mordenhost/whm2bunny/pkg/bunny"
	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/observability"
	"github.com/mordenhost/whm2bunny/pkg/state"
)

type fakeStats struct {
	zones       []bunny.PullZone
	statsByZone map[int64][]*bunny.PullZoneStats // consumed in order per zone
	entries     []bunny.BandwidthEntry
	prevEntries []bunny.BandwidthEntry
	topCalls    int
	listErr     error

	mu sync.Mutex
}

func (f *fakeStats) ListPullZones(ctx context.Context) ([]bunny.PullZone, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.zones, nil
}

func (f *fakeStats) GetPullZoneStats(ctx context.Context, pullZoneID int64, from, to time.Time) (*bunny.PullZoneStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.statsByZone[pullZoneID]
	if len(queue) == 0 {
		return nil, errors.New("no stats")
	}
	stats := queue[0]
	f.statsByZone[pullZoneID] = queue[1:]
	return stats, nil
}

func (f *fakeStats) TopBandwidth(ctx context.Context, n int, from, to time.Time) ([]bunny.BandwidthEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topCalls++
	if f.topCalls > 1 && f.prevEntries != nil {
		return f.prevEntries, nil
	}
	return f.entries, nil
}

type fakeReporter struct {
	mu       sync.Mutex
	enabled  bool
	messages []string
	alerts   map[string]float64
	sendErr  error
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{enabled: true, alerts: make(map[string]float64)}
}

func (f *fakeReporter) IsEnabled() bool { return f.enabled }

func (f *fakeReporter) SendRaw(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeReporter) NotifyBandwidthAlert(ctx context.Context, domain string, percentIncrease float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts[domain] = percentIncrease
	return nil
}

func (f *fakeReporter) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.InfoLevel, io.Discard)
}

func newTestScheduler(t *testing.T, cfg config.TelegramSummaryConfig, stats *fakeStats, rep *fakeReporter) *Scheduler {
	t.Helper()
	states, err := state.NewManager(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("failed to create state manager: %v", err)
	}
	s, err := NewScheduler(cfg, stats, rep, states, testLogger())
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	return s
}

func TestNewSchedulerRejectsBadTimezone(t *testing.T) {
	cfg := config.TelegramSummaryConfig{Enabled: true, Timezone: "Not/AZone"}
	_, err := NewScheduler(cfg, &fakeStats{}, newFakeReporter(), nil, testLogger())
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestStartDisabledIsNoOp(t *testing.T) {
	rep := newFakeReporter()
	s := newTestScheduler(t, config.TelegramSummaryConfig{Enabled: false}, &fakeStats{}, rep)
	if err := s.Start(); err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	if s.running {
		t.Error("scheduler should not run when summaries are disabled")
	}
	s.Stop()
}

func TestStartAndStop(t *testing.T) {
	rep := newFakeReporter()
	cfg := config.TelegramSummaryConfig{Enabled: true, Timezone: "UTC"}
	s := newTestScheduler(t, cfg, &fakeStats{}, rep)
	if err := s.Start(); err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	if !s.running {
		t.Fatal("scheduler should be running")
	}
	// second start is idempotent
	if err := s.Start(); err != nil {
		t.Fatalf("second start returned error: %v", err)
	}
	s.Stop()
	if s.running {
		t.Error("scheduler should be stopped")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := config.TelegramSummaryConfig{Enabled: true, Schedule: "not a cron expr"}
	s := newTestScheduler(t, cfg, &fakeStats{}, newFakeReporter())
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid cron schedule")
	}
}

func TestDailySummaryContent(t *testing.T) {
	stats := &fakeStats{
		entries: []bunny.BandwidthEntry{
			{ZoneName: "morden-big-com", Bandwidth: 7 << 30, Requests: 1_500_000, Percentage: 70},
			{ZoneName: "morden-mid-com", Bandwidth: 2 << 30, Requests: 400_000, Percentage: 20},
			{ZoneName: "morden-small-com", Bandwidth: 1 << 30, Requests: 100_000, Percentage: 10},
		},
	}
	rep := newFakeReporter()
	cfg := config.TelegramSummaryConfig{Enabled: true, IncludeTopBandwidth: 2}
	s := newTestScheduler(t, cfg, stats, rep)

	s.RunDailySummary(context.Background())

	msg := rep.lastMessage()
	if msg == "" {
		t.Fatal("expected a summary message")
	}
	if !strings.Contains(msg, "Daily Summary") {
		t.Errorf("missing title: %q", msg)
	}
	if !strings.Contains(msg, "10.00 GB") {
		t.Errorf("missing total bandwidth: %q", msg)
	}
	if !strings.Contains(msg, "2.00M") {
		t.Errorf("missing formatted request count: %q", msg)
	}
	if !strings.Contains(msg, "Top 2 Domains") {
		t.Errorf("expected top list capped at 2: %q", msg)
	}
	if !strings.Contains(msg, "1. morden-big-com") {
		t.Errorf("expected biggest zone ranked first: %q", msg)
	}
	if strings.Contains(msg, "morden-small-com") {
		t.Errorf("third zone should be truncated from top list: %q", msg)
	}
}

func TestDailySummaryIncludesStateCounts(t *testing.T) {
	stats := &fakeStats{entries: []bunny.BandwidthEntry{}}
	rep := newFakeReporter()
	s := newTestScheduler(t, config.TelegramSummaryConfig{Enabled: true}, stats, rep)

	rec, err := s.states.Create("example.com", "", "alice", "account_created")
	if err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}
	if _, err := s.states.Update(rec.ID, func(r *state.Record) {
		r.Status = state.StatusSuccess
	}); err != nil {
		t.Fatalf("failed to update state: %v", err)
	}

	s.RunDailySummary(context.Background())

	msg := rep.lastMessage()
	if !strings.Contains(msg, "1 provisioned, 0 failed") {
		t.Errorf("expected domain counts in summary: %q", msg)
	}
}

func TestWeeklySummaryComparison(t *testing.T) {
	stats := &fakeStats{
		entries: []bunny.BandwidthEntry{
			{ZoneName: "morden-example-com", Bandwidth: 4 << 30, Requests: 1000, Percentage: 100},
		},
		prevEntries: []bunny.BandwidthEntry{
			{ZoneName: "morden-example-com", Bandwidth: 2 << 30, Requests: 500, Percentage: 100},
		},
	}
	rep := newFakeReporter()
	s := newTestScheduler(t, config.TelegramSummaryConfig{Enabled: true}, stats, rep)

	s.RunWeeklySummary(context.Background())

	msg := rep.lastMessage()
	if !strings.Contains(msg, "Weekly Summary") {
		t.Errorf("missing title: %q", msg)
	}
	if !strings.Contains(msg, "+100% vs last week") {
		t.Errorf("expected week-over-week change: %q", msg)
	}
}

func TestBandwidthAlertFiresAboveThreshold(t *testing.T) {
	stats := &fakeStats{
		zones: []bunny.PullZone{
			{ID: 1, Name: "morden-spiky-com"},
			{ID: 2, Name: "morden-calm-com"},
		},
		statsByZone: map[int64][]*bunny.PullZoneStats{
			1: {
				{TotalBandwidth: 200 << 20}, // today
				{TotalBandwidth: 100 << 20}, // yesterday
			},
			2: {
				{TotalBandwidth: 110 << 20},
				{TotalBandwidth: 100 << 20},
			},
		},
	}
	rep := newFakeReporter()
	cfg := config.TelegramSummaryConfig{Enabled: true, BandwidthAlertThreshold: 50}
	s := newTestScheduler(t, cfg, stats, rep)

	s.CheckBandwidthAlerts(context.Background())

	if got, ok := rep.alerts["morden-spiky-com"]; !ok || got < 99 || got > 101 {
		t.Errorf("expected ~100%% alert for spiky zone, got %v (fired=%v)", got, ok)
	}
	if _, ok := rep.alerts["morden-calm-com"]; ok {
		t.Error("calm zone should not trigger an alert")
	}
}

func TestBandwidthAlertSkipsZonesWithoutHistory(t *testing.T) {
	stats := &fakeStats{
		zones: []bunny.PullZone{{ID: 1, Name: "morden-new-com"}},
		statsByZone: map[int64][]*bunny.PullZoneStats{
			1: {
				{TotalBandwidth: 500 << 20},
				{TotalBandwidth: 0},
			},
		},
	}
	rep := newFakeReporter()
	s := newTestScheduler(t, config.TelegramSummaryConfig{Enabled: true}, stats, rep)

	s.CheckBandwidthAlerts(context.Background())

	if len(rep.alerts) != 0 {
		t.Errorf("zone with no prior traffic should not alert, got %v", rep.alerts)
	}
}

func TestFormatCount(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{999, "999"},
		{1_500, "1.50K"},
		{2_400_000, "2.40M"},
		{3_000_000_000, "3.00B"},
	}
	for _, tc := range cases {
		if got := formatCount(tc.in); got != tc.want {
			t.Errorf("formatCount(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

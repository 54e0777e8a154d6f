package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"monitor-dashboard/internal/export"
	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/source"
	"monitor-dashboard/internal/tabular"
)

type stubSource struct {
	mu          sync.Mutex
	metrics     []monitoring.MonitorMetric
	alarms      []monitoring.Alarm
	metricsErr  error
	alarmsErr   error
	refs        []monitoring.MonitorRef
	created     []monitoring.CreateMonitorSpec
	groups      []monitoring.CreateGroupSpec
	rca         map[string][]byte
	metricCalls int
}

func (s *stubSource) FetchMonitors(ctx context.Context) ([]monitoring.MonitorMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricCalls++
	if s.metricsErr != nil {
		return nil, s.metricsErr
	}
	return append([]monitoring.MonitorMetric(nil), s.metrics...), nil
}

func (s *stubSource) FetchAlarms(ctx context.Context) ([]monitoring.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alarmsErr != nil {
		return nil, s.alarmsErr
	}
	return append([]monitoring.Alarm(nil), s.alarms...), nil
}

func (s *stubSource) ListMonitors(ctx context.Context) ([]monitoring.MonitorRef, error) {
	return s.refs, nil
}

func (s *stubSource) CreateMonitor(ctx context.Context, spec monitoring.CreateMonitorSpec) (monitoring.CreatedMonitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, spec)
	return monitoring.CreatedMonitor{MonitorID: "new-1"}, nil
}

func (s *stubSource) CreateMonitorGroup(ctx context.Context, spec monitoring.CreateGroupSpec) (monitoring.GroupRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, spec)
	return monitoring.GroupRef{GroupID: "g-1"}, nil
}

func (s *stubSource) FetchRCA(ctx context.Context, monitorID string) (monitoring.RCAReport, error) {
	raw, ok := s.rca[monitorID]
	if !ok {
		return monitoring.RCAReport{}, &source.APIError{Endpoint: source.EndpointRCA, Status: 404, Message: "no rca"}
	}
	return monitoring.RCAReport{MonitorID: monitorID, Raw: raw}, nil
}

func (s *stubSource) FetchMonitorDetails(ctx context.Context, monitorID string) (json.RawMessage, error) {
	return json.RawMessage(`{"monitor_id":"` + monitorID + `"}`), nil
}

func (s *stubSource) setMetricsErr(err error) {
	s.mu.Lock()
	s.metricsErr = err
	s.mu.Unlock()
}

var fixedNow = time.Date(2026, 1, 26, 8, 30, 0, 0, time.UTC)

func newStubSource() *stubSource {
	base := time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)
	return &stubSource{
		metrics: []monitoring.MonitorMetric{
			{MonitorID: "m1", MonitorName: "Checkout", MonitorType: "URL", MonitorStatus: monitoring.StatusUp, AttributeValue: 300, Unit: "ms", LastPolledTime: base.Add(2 * time.Minute)},
			{MonitorID: "m2", MonitorName: "Search", MonitorType: "RESTAPI", MonitorStatus: monitoring.StatusUp, AttributeValue: 2500, Unit: "ms", LastPolledTime: base},
			{MonitorID: "m3", MonitorName: "Billing", MonitorType: "URL", MonitorStatus: monitoring.StatusTrouble, AttributeValue: 6000, Unit: "ms", LastPolledTime: base.Add(time.Minute)},
			{MonitorID: "m4", MonitorName: "db", MonitorType: "SERVER", MonitorStatus: monitoring.StatusDown, Unit: "ms"},
			{MonitorID: "m5", MonitorName: "Legacy", MonitorType: "URL", MonitorStatus: monitoring.StatusConfigError, Unit: "ms"},
		},
		alarms: []monitoring.Alarm{
			{OutageID: "1", Status: monitoring.SeverityCritical, DowntimeMillis: 7200000, Name: "A", DownReason: "timeout"},
			{OutageID: "2", Status: monitoring.SeverityWarning, DowntimeMillis: 600000, Name: "B", DownReason: "dns"},
		},
		refs: []monitoring.MonitorRef{{MonitorID: "m1", MonitorName: "Checkout"}},
		rca:  map[string][]byte{"m1": []byte(`{"cause":"dns"}`)},
	}
}

func newTestService(t *testing.T, src *stubSource, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	service, err := NewService(src, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(service.Stop)
	return service
}

func TestNewServiceRequiresSource(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestViewsBeforeFirstFetchAreLoading(t *testing.T) {
	service := newTestService(t, newStubSource())
	view := service.Monitors(tabular.Monitors.DefaultParams(10), false)
	if !view.Loading || view.Total != 0 || view.Rows == nil {
		t.Fatalf("unexpected initial view %+v", view)
	}
	if summary := service.Summary(); !summary.Loading {
		t.Fatalf("expected loading summary")
	}
}

func TestMonitorsViewAfterRefresh(t *testing.T) {
	service := newTestService(t, newStubSource())
	result, err := service.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if result.MonitorsGeneration != 1 || result.AlarmsGeneration != 1 {
		t.Fatalf("unexpected generations %+v", result)
	}

	params := tabular.Params{Category: tabular.MonitorsDown, SortKey: "monitor_id", Direction: tabular.Asc, PageSize: 10}
	view := service.Monitors(params, false)
	if view.Total != 2 || len(view.Rows) != 2 || view.Rows[0].MonitorID != "m4" || view.Rows[1].MonitorID != "m5" {
		t.Fatalf("unexpected down view %+v", view)
	}
	if view.Rows[1].StatusLabel != "Down" || view.Loading || view.FetchedAt == nil || !view.FetchedAt.Equal(fixedNow) {
		t.Fatalf("unexpected row state %+v", view)
	}

	all := service.Monitors(tabular.Monitors.DefaultParams(2), false)
	if all.Total != 5 || len(all.Rows) != 2 || all.Rows[0].MonitorID != "m3" || all.Rows[0].Band != monitoring.BandError {
		t.Fatalf("unexpected default view %+v", all)
	}
	if all.Rows[1].Band != monitoring.BandWarning {
		t.Fatalf("expected warning band, got %s", all.Rows[1].Band)
	}
}

func TestFavoritesFilter(t *testing.T) {
	service := newTestService(t, newStubSource())
	if _, err := service.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if err := service.Favorites().Add("m2"); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	view := service.Monitors(tabular.Monitors.DefaultParams(10), true)
	if view.Total != 1 || !view.Rows[0].Favorite || view.Rows[0].MonitorID != "m2" {
		t.Fatalf("unexpected favorites view %+v", view)
	}
	starred, err := service.Favorites().Toggle("m2")
	if err != nil || starred {
		t.Fatalf("expected toggle to unstar, got %v %v", starred, err)
	}
	if err := service.Favorites().Add(" "); !errors.Is(err, monitoring.ErrEmptyMonitorID) {
		t.Fatalf("expected empty id error, got %v", err)
	}
}

func TestAlarmsViewCountsCritical(t *testing.T) {
	service := newTestService(t, newStubSource())
	if _, err := service.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	view := service.Alarms(tabular.Alarms.DefaultParams(1))
	if view.Total != 2 || view.Critical != 1 || len(view.Rows) != 1 {
		t.Fatalf("unexpected alarms view %+v", view)
	}
	if view.Rows[0].OutageID != "1" || view.Rows[0].Duration != "2h 0m" || view.Rows[0].SeverityLabel != "Critical" {
		t.Fatalf("unexpected alarm row %+v", view.Rows[0])
	}

	warnings := service.Alarms(tabular.Params{Category: tabular.AlarmsWarning, PageSize: 10})
	if warnings.Total != 1 || warnings.Critical != 0 {
		t.Fatalf("unexpected warnings view %+v", warnings)
	}
}

func TestFetchErrorKeepsRowsAndReportsMessage(t *testing.T) {
	src := newStubSource()
	service := newTestService(t, src)
	if _, err := service.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	src.setMetricsErr(&source.NetworkError{Endpoint: source.EndpointMetrics, Timeout: true, Err: context.DeadlineExceeded})
	if _, err := service.RefreshAll(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	view := service.Monitors(tabular.Monitors.DefaultParams(10), false)
	if view.Total != 5 || view.Error != "Request timed out" {
		t.Fatalf("expected previous rows with error, got total=%d error=%q", view.Total, view.Error)
	}
	alarms := service.Alarms(tabular.Alarms.DefaultParams(10))
	if alarms.Error != "" || alarms.Generation != 2 {
		t.Fatalf("alarms should refresh independently, got %+v", alarms)
	}
}

func TestSummary(t *testing.T) {
	service := newTestService(t, newStubSource())
	if _, err := service.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	summary := service.Summary()
	want := monitoring.StatusSummary{Up: 2, Trouble: 1, ConfigErrors: 1, Down: 1}
	if summary.StatusSummary != want || summary.Total != 5 || summary.CriticalAlarms != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestPerformanceSeries(t *testing.T) {
	service := newTestService(t, newStubSource())
	if _, err := service.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	points := service.Performance("")
	if len(points) != 3 {
		t.Fatalf("expected 3 timed points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].LastPolledTime.Before(points[i-1].LastPolledTime) {
			t.Fatalf("points not chronological")
		}
	}
	if single := service.Performance("m3"); len(single) != 1 || single[0].AttributeValue != 6000 {
		t.Fatalf("unexpected single series %+v", single)
	}
}

func TestExportIgnoresPagination(t *testing.T) {
	service := newTestService(t, newStubSource())
	if _, err := service.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	params := tabular.Params{Category: tabular.MonitorsUp, SortKey: "monitor_name", Direction: tabular.Asc, PageIndex: 3, PageSize: 1}
	out, err := service.ExportMonitors(params, false, export.FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.FileName != "metrics-export-2026-01-26T08-30.csv" || !strings.HasPrefix(out.ContentType, "text/csv") {
		t.Fatalf("unexpected export meta %+v", out)
	}
	lines := strings.Split(strings.TrimSpace(string(out.Body)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "Checkout,") || !strings.HasPrefix(lines[2], "Search,") {
		t.Fatalf("unexpected export body %q", out.Body)
	}

	alarms, err := service.ExportAlarms(tabular.Alarms.DefaultParams(10), export.FormatJSON)
	if err != nil {
		t.Fatalf("export alarms: %v", err)
	}
	if alarms.FileName != "alarms-export-2026-01-26T08-30.json" || !strings.Contains(string(alarms.Body), `"Outage ID": "1"`) {
		t.Fatalf("unexpected alarms export %+v", alarms)
	}
}

func TestCreateMonitorValidatesAndSubmits(t *testing.T) {
	src := newStubSource()
	service := newTestService(t, src)
	if _, err := service.CreateMonitor(context.Background(), monitoring.CreateMonitorSpec{DisplayName: "x"}); !monitoring.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	created, err := service.CreateMonitor(context.Background(), monitoring.CreateMonitorSpec{DisplayName: "Home", Website: "https://example.com"})
	if err != nil {
		t.Fatalf("create monitor: %v", err)
	}
	if created.MonitorID != "new-1" {
		t.Fatalf("unexpected created %+v", created)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.created) != 1 || src.created[0].CheckFrequency != monitoring.DefaultCheckFrequency {
		t.Fatalf("unexpected submitted specs %+v", src.created)
	}
}

func TestCreateGroupAppliesDefaults(t *testing.T) {
	src := newStubSource()
	service := newTestService(t, src, WithGroupDefaults(monitoring.GroupDefaults{NotificationProfileID: "np-1"}))
	if _, err := service.CreateGroup(context.Background(), "Edge", nil); !monitoring.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	ref, err := service.CreateGroup(context.Background(), "Edge", []string{"m1", "m2"})
	if err != nil || ref.GroupID != "g-1" {
		t.Fatalf("unexpected group result %+v %v", ref, err)
	}
	if src.groups[0].NotificationProfileID != "np-1" || src.groups[0].AlertFrequency != 10 {
		t.Fatalf("defaults not applied %+v", src.groups[0])
	}
}

func TestRCA(t *testing.T) {
	service := newTestService(t, newStubSource())
	view, err := service.RCA(context.Background(), "m1")
	if err != nil {
		t.Fatalf("rca: %v", err)
	}
	if view.Report != "{\n  \"cause\": \"dns\"\n}" {
		t.Fatalf("unexpected report %q", view.Report)
	}
	_, err = service.RCA(context.Background(), "m9")
	if ErrorMessage(err) != "no rca" {
		t.Fatalf("expected api message, got %q", ErrorMessage(err))
	}
}

func TestCompactModePageSize(t *testing.T) {
	service := newTestService(t, newStubSource(), WithCompactMode(true))
	if service.DefaultPageSize() != tabular.CompactPageSize {
		t.Fatalf("expected compact page size, got %d", service.DefaultPageSize())
	}
}

func TestRunStopsWithContext(t *testing.T) {
	src := newStubSource()
	service := newTestService(t, src, WithPollInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := service.MonitorsPoller().Latest(); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if _, ok := service.MonitorsPoller().Latest(); !ok {
		t.Fatalf("expected a snapshot from the initial poll")
	}
}

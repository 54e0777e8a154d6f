package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"monitor-dashboard/internal/export"
	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/observability/metrics"
	"monitor-dashboard/internal/refresh"
	"monitor-dashboard/internal/tabular"
)

// Table names used by pollers, metrics and mirrors.
const (
	TableMonitors = "monitors"
	TableAlarms   = "alarms"
)

// Source is the monitoring API as the dashboard uses it.
type Source interface {
	FetchMonitors(ctx context.Context) ([]monitoring.MonitorMetric, error)
	FetchAlarms(ctx context.Context) ([]monitoring.Alarm, error)
	ListMonitors(ctx context.Context) ([]monitoring.MonitorRef, error)
	CreateMonitor(ctx context.Context, spec monitoring.CreateMonitorSpec) (monitoring.CreatedMonitor, error)
	CreateMonitorGroup(ctx context.Context, spec monitoring.CreateGroupSpec) (monitoring.GroupRef, error)
	FetchRCA(ctx context.Context, monitorID string) (monitoring.RCAReport, error)
	FetchMonitorDetails(ctx context.Context, monitorID string) (json.RawMessage, error)
}

// Service assembles table views from the polled snapshots and forwards form actions to
// the monitoring API.
type Service struct {
	source        Source
	monitors      *refresh.Poller[monitoring.MonitorMetric]
	alarms        *refresh.Poller[monitoring.Alarm]
	favorites     *Favorites
	groupDefaults monitoring.GroupDefaults
	pageSize      int
	interval      time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// ServiceOption customizes the dashboard service.
type ServiceOption func(*Service)

// WithPollInterval sets the refresh interval of both tables.
func WithPollInterval(interval time.Duration) ServiceOption {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCompactMode shrinks the default page size.
func WithCompactMode(compact bool) ServiceOption {
	return func(s *Service) {
		if compact {
			s.pageSize = tabular.CompactPageSize
		}
	}
}

// WithGroupDefaults sets the profile ids attached to new groups.
func WithGroupDefaults(defaults monitoring.GroupDefaults) ServiceOption {
	return func(s *Service) {
		s.groupDefaults = defaults
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock assigns the clock used for snapshot stamps and export names.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the dashboard service.
func NewService(source Source, opts ...ServiceOption) (*Service, error) {
	if source == nil {
		return nil, errors.New("dashboard: nil source")
	}
	s := &Service{
		source:    source,
		favorites: NewFavorites(),
		pageSize:  tabular.DefaultPageSize,
		interval:  refresh.DefaultInterval,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	pollerOpts := []refresh.Option{
		refresh.WithInterval(s.interval),
		refresh.WithLogger(s.logger),
		refresh.WithClock(s.now),
	}
	s.monitors = refresh.New(TableMonitors, source.FetchMonitors, pollerOpts...)
	s.alarms = refresh.New(TableAlarms, source.FetchAlarms, pollerOpts...)
	return s, nil
}

// MonitorsPoller exposes the monitors poller for publish hooks.
func (s *Service) MonitorsPoller() *refresh.Poller[monitoring.MonitorMetric] {
	return s.monitors
}

// AlarmsPoller exposes the alarms poller for publish hooks.
func (s *Service) AlarmsPoller() *refresh.Poller[monitoring.Alarm] {
	return s.alarms
}

// Favorites returns the starred monitor set.
func (s *Service) Favorites() *Favorites {
	return s.favorites
}

// DefaultPageSize is the page size used when a request does not name one.
func (s *Service) DefaultPageSize() int {
	return s.pageSize
}

// Run polls both tables until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.monitors.Run(ctx) })
	g.Go(func() error { return s.alarms.Run(ctx) })
	return g.Wait()
}

// Stop stops both pollers; nothing is published afterwards.
func (s *Service) Stop() {
	s.monitors.Stop()
	s.alarms.Stop()
}

// RefreshAll refreshes both tables concurrently. It returns the first fetch error; the
// other table is still refreshed.
func (s *Service) RefreshAll(ctx context.Context) (RefreshResult, error) {
	var (
		g      errgroup.Group
		result RefreshResult
	)
	g.Go(func() error {
		snap, err := s.monitors.Refresh(ctx)
		result.MonitorsGeneration = snap.Generation
		return err
	})
	g.Go(func() error {
		snap, err := s.alarms.Refresh(ctx)
		result.AlarmsGeneration = snap.Generation
		return err
	})
	err := g.Wait()
	return result, err
}

// Monitors renders the monitors table. With favoritesOnly only starred monitors remain.
func (s *Service) Monitors(params tabular.Params, favoritesOnly bool) MonitorView {
	snap, ok := s.monitors.Latest()
	favorites := s.favorites.Snapshot()
	records := s.monitorRecords(snap.Records, favorites, favoritesOnly)
	page := tabular.Monitors.Compose(records, params)
	rows := make([]MonitorRow, 0, len(page.Rows))
	for _, m := range page.Rows {
		rows = append(rows, toMonitorRow(m, favorites))
	}
	return MonitorView{View: newView(page, rows, snap, ok, s.monitors.Loading())}
}

// Alarms renders the alarms table.
func (s *Service) Alarms(params tabular.Params) AlarmView {
	snap, ok := s.alarms.Latest()
	filtered := tabular.Alarms.Filter(snap.Records, params)
	page := tabular.Page[monitoring.Alarm]{
		Rows:      tabular.Paginate(filtered, params.PageIndex, params.PageSize),
		Total:     len(filtered),
		PageIndex: params.PageIndex,
		PageSize:  params.PageSize,
	}
	rows := make([]AlarmRow, 0, len(page.Rows))
	for _, a := range page.Rows {
		rows = append(rows, toAlarmRow(a))
	}
	return AlarmView{
		View:     newView(page, rows, snap, ok, s.alarms.Loading()),
		Critical: monitoring.CountCritical(filtered),
	}
}

// Summary counts monitors per status and critical alarms.
func (s *Service) Summary() SummaryView {
	snap, ok := s.monitors.Latest()
	alarmSnap, _ := s.alarms.Latest()
	view := SummaryView{
		StatusSummary:  monitoring.Summarize(snap.Records),
		Total:          len(snap.Records),
		CriticalAlarms: monitoring.CountCritical(alarmSnap.Records),
		Loading:        !ok || s.monitors.Loading(),
	}
	if ok {
		view.Generation = snap.Generation
		if !snap.FetchedAt.IsZero() {
			fetched := snap.FetchedAt
			view.FetchedAt = &fetched
		}
		view.Error = ErrorMessage(snap.Err)
	}
	return view
}

// Performance returns chart points from the monitors snapshot in chronological order.
// A non-empty monitorID restricts the series to that monitor. Records without a poll
// time are skipped.
func (s *Service) Performance(monitorID string) []monitoring.ChartPoint {
	snap, _ := s.monitors.Latest()
	monitorID = strings.TrimSpace(monitorID)
	records := tabular.Where(snap.Records, func(m monitoring.MonitorMetric) bool {
		if m.LastPolledTime.IsZero() {
			return false
		}
		return monitorID == "" || m.MonitorID == monitorID
	})
	records = tabular.Monitors.SortBy(records, "last_polled_time", tabular.Asc)
	points := make([]monitoring.ChartPoint, 0, len(records))
	for _, m := range records {
		points = append(points, monitoring.ChartPoint{LastPolledTime: m.LastPolledTime, AttributeValue: m.AttributeValue})
	}
	return points
}

// Export is a rendered export file.
type Export struct {
	FileName    string
	ContentType string
	Body        []byte
}

// ExportMonitors renders the filtered, sorted monitors collection. Pagination is ignored.
func (s *Service) ExportMonitors(params tabular.Params, favoritesOnly bool, format export.Format) (Export, error) {
	snap, _ := s.monitors.Latest()
	records := s.monitorRecords(snap.Records, s.favorites.Snapshot(), favoritesOnly)
	table := export.MonitorTable(tabular.Monitors.Filter(records, params))
	return s.encode(TableMonitors, export.KindMonitors, table, format)
}

// ExportAlarms renders the filtered, sorted alarms collection. Pagination is ignored.
func (s *Service) ExportAlarms(params tabular.Params, format export.Format) (Export, error) {
	snap, _ := s.alarms.Latest()
	table := export.AlarmTable(tabular.Alarms.Filter(snap.Records, params))
	return s.encode(TableAlarms, export.KindAlarms, table, format)
}

// MonitorOptions lists monitors for group selection.
func (s *Service) MonitorOptions(ctx context.Context) ([]monitoring.MonitorRef, error) {
	return s.source.ListMonitors(ctx)
}

// CreateMonitor validates and submits the create-monitor form, then refreshes the
// monitors table in the background.
func (s *Service) CreateMonitor(ctx context.Context, spec monitoring.CreateMonitorSpec) (monitoring.CreatedMonitor, error) {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		return monitoring.CreatedMonitor{}, err
	}
	created, err := s.source.CreateMonitor(ctx, spec)
	if err != nil {
		return monitoring.CreatedMonitor{}, err
	}
	s.logger.Info("monitor created", "display_name", spec.DisplayName, "monitor_id", created.MonitorID)
	go s.refreshInBackground(s.monitors)
	return created, nil
}

// CreateGroup builds the group payload with the configured defaults and submits it.
func (s *Service) CreateGroup(ctx context.Context, name string, monitorIDs []string) (monitoring.GroupRef, error) {
	spec := monitoring.NewCreateGroupSpec(name, monitorIDs, s.groupDefaults)
	if err := spec.Validate(); err != nil {
		return monitoring.GroupRef{}, err
	}
	ref, err := s.source.CreateMonitorGroup(ctx, spec)
	if err != nil {
		return monitoring.GroupRef{}, err
	}
	s.logger.Info("monitor group created", "display_name", spec.DisplayName, "group_id", ref.GroupID, "monitors", len(spec.Monitors))
	return ref, nil
}

// RCA fetches and formats the root cause report of a monitor.
func (s *Service) RCA(ctx context.Context, monitorID string) (RCAView, error) {
	report, err := s.source.FetchRCA(ctx, monitorID)
	if err != nil {
		return RCAView{}, err
	}
	return RCAView{MonitorID: report.MonitorID, Report: report.Format()}, nil
}

// MonitorDetails fetches the details document of a monitor.
func (s *Service) MonitorDetails(ctx context.Context, monitorID string) (json.RawMessage, error) {
	return s.source.FetchMonitorDetails(ctx, monitorID)
}

func (s *Service) monitorRecords(records []monitoring.MonitorMetric, favorites map[string]struct{}, favoritesOnly bool) []monitoring.MonitorMetric {
	if !favoritesOnly {
		return records
	}
	return tabular.Where(records, func(m monitoring.MonitorMetric) bool {
		_, ok := favorites[m.MonitorID]
		return ok
	})
}

func (s *Service) encode(table, kind string, data export.Table, format export.Format) (Export, error) {
	start := time.Now()
	body, err := export.Encode(data, format)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveExport(table, string(format), result, time.Since(start))
	if err != nil {
		return Export{}, err
	}
	return Export{
		FileName:    export.FileName(kind, format, s.now()),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *Service) refreshInBackground(p *refresh.Poller[monitoring.MonitorMetric]) {
	if _, err := p.Refresh(context.Background()); err != nil && !errors.Is(err, refresh.ErrStopped) {
		s.logger.Warn("refresh after create failed", "table", p.Name(), "error", err)
	}
}

package application

import (
	"errors"
	"time"

	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/refresh"
	"monitor-dashboard/internal/source"
	"monitor-dashboard/internal/tabular"
)

// View is one rendered table page plus the state of the snapshot it came from.
type View[T any] struct {
	tabular.Page[T]
	Generation uint64     `json:"generation"`
	FetchedAt  *time.Time `json:"fetched_at"`
	Loading    bool       `json:"loading"`
	Error      string     `json:"error,omitempty"`
}

// MonitorRow is a monitor metric with its display attributes.
type MonitorRow struct {
	monitoring.MonitorMetric
	StatusLabel string `json:"status_label"`
	Band        string `json:"band"`
	Favorite    bool   `json:"favorite"`
}

// AlarmRow is an alarm with its display attributes.
type AlarmRow struct {
	monitoring.Alarm
	SeverityLabel string `json:"severity_label"`
	Duration      string `json:"duration"`
}

// MonitorView is the monitors table.
type MonitorView struct {
	View[MonitorRow]
}

// AlarmView is the alarms table. Critical counts critical alarms in the filtered set.
type AlarmView struct {
	View[AlarmRow]
	Critical int `json:"critical"`
}

// SummaryView backs the status summary cards.
type SummaryView struct {
	monitoring.StatusSummary
	Total          int        `json:"total"`
	CriticalAlarms int        `json:"critical_alarms"`
	Generation     uint64     `json:"generation"`
	FetchedAt      *time.Time `json:"fetched_at"`
	Loading        bool       `json:"loading"`
	Error          string     `json:"error,omitempty"`
}

// RCAView is a formatted root cause report.
type RCAView struct {
	MonitorID string `json:"monitor_id"`
	Report    string `json:"report"`
}

// RefreshResult reports the generations published by a manual refresh.
type RefreshResult struct {
	MonitorsGeneration uint64 `json:"monitors_generation"`
	AlarmsGeneration   uint64 `json:"alarms_generation"`
}

func newView[T, R any](page tabular.Page[T], rows []R, snap refresh.Snapshot[T], ok, loading bool) View[R] {
	view := View[R]{
		Page: tabular.Page[R]{
			Rows:      rows,
			Total:     page.Total,
			PageIndex: page.PageIndex,
			PageSize:  page.PageSize,
		},
		Loading: loading || !ok,
	}
	if !ok {
		return view
	}
	view.Generation = snap.Generation
	if !snap.FetchedAt.IsZero() {
		fetched := snap.FetchedAt
		view.FetchedAt = &fetched
	}
	if snap.Err != nil {
		view.Error = ErrorMessage(snap.Err)
	}
	return view
}

func toMonitorRow(m monitoring.MonitorMetric, favorites map[string]struct{}) MonitorRow {
	_, favorite := favorites[m.MonitorID]
	return MonitorRow{
		MonitorMetric: m,
		StatusLabel:   m.MonitorStatus.Label(),
		Band:          monitoring.ResponseBand(m.AttributeValue),
		Favorite:      favorite,
	}
}

func toAlarmRow(a monitoring.Alarm) AlarmRow {
	return AlarmRow{
		Alarm:         a,
		SeverityLabel: a.Status.Label(),
		Duration:      monitoring.FormatDuration(a.DowntimeMillis),
	}
}

// ErrorMessage is the inline message shown for a failed fetch.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *source.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if source.IsTimeout(err) {
		return "Request timed out"
	}
	return err.Error()
}

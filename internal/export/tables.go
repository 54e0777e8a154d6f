package export

import (
	"strconv"
	"time"

	monitoring "monitor-dashboard/internal/monitoring/domain"
)

// Export kinds used in file names.
const (
	KindMonitors = "metrics"
	KindAlarms   = "alarms"
)

var (
	monitorColumns = []string{"Monitor Name", "Type", "Status", "Response Time", "Last Checked"}
	alarmColumns   = []string{"Monitor", "Outage ID", "Severity", "Duration", "Reason", "Last Polled"}
)

// MonitorTable labels monitor metrics for export.
func MonitorTable(records []monitoring.MonitorMetric) Table {
	rows := make([][]string, 0, len(records))
	for _, m := range records {
		rows = append(rows, []string{
			m.MonitorName,
			m.MonitorType,
			m.MonitorStatus.Label(),
			strconv.FormatFloat(m.AttributeValue, 'f', -1, 64) + " " + m.Unit,
			formatTime(m.LastPolledTime),
		})
	}
	return Table{Title: "Monitor Metrics", Columns: monitorColumns, Rows: rows}
}

// AlarmTable labels alarms for export.
func AlarmTable(records []monitoring.Alarm) Table {
	rows := make([][]string, 0, len(records))
	for _, a := range records {
		rows = append(rows, []string{
			a.Name,
			a.OutageID,
			a.Status.Label(),
			monitoring.FormatDuration(a.DowntimeMillis),
			a.DownReason,
			formatTime(a.LastPolledTime),
		})
	}
	return Table{Title: "Alarms", Columns: alarmColumns, Rows: rows}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

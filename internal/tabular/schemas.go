package tabular

import (
	"cmp"
	"strings"

	monitoring "monitor-dashboard/internal/monitoring/domain"
)

// Monitor status categories.
const (
	MonitorsUp       Category = "up"
	MonitorsCritical Category = "critical"
	MonitorsDown     Category = "down"
)

// Alarm severity categories.
const (
	AlarmsCritical Category = "critical"
	AlarmsWarning  Category = "warning"
)

// Monitors is the schema of the monitors table.
var Monitors = Schema[monitoring.MonitorMetric]{
	Name: "monitors",
	SearchFields: func(m monitoring.MonitorMetric) []string {
		return []string{m.MonitorName, m.MonitorType}
	},
	Categories: map[Category]func(monitoring.MonitorMetric) bool{
		MonitorsUp:       func(m monitoring.MonitorMetric) bool { return m.MonitorStatus == monitoring.StatusUp },
		MonitorsCritical: func(m monitoring.MonitorMetric) bool { return m.MonitorStatus == monitoring.StatusTrouble },
		MonitorsDown:     func(m monitoring.MonitorMetric) bool { return m.MonitorStatus.IsDown() },
	},
	SortKeys: map[string]Compare[monitoring.MonitorMetric]{
		"monitor_id": func(a, b monitoring.MonitorMetric) int { return strings.Compare(a.MonitorID, b.MonitorID) },
		"monitor_name": func(a, b monitoring.MonitorMetric) int {
			return strings.Compare(a.MonitorName, b.MonitorName)
		},
		"monitor_type": func(a, b monitoring.MonitorMetric) int {
			return strings.Compare(a.MonitorType, b.MonitorType)
		},
		"monitor_status": func(a, b monitoring.MonitorMetric) int {
			return cmp.Compare(a.MonitorStatus, b.MonitorStatus)
		},
		"attribute_value": func(a, b monitoring.MonitorMetric) int {
			return cmp.Compare(a.AttributeValue, b.AttributeValue)
		},
		"last_polled_time": func(a, b monitoring.MonitorMetric) int {
			return a.LastPolledTime.Compare(b.LastPolledTime)
		},
	},
	DefaultSortKey:   "attribute_value",
	DefaultDirection: Desc,
}

// Alarms is the schema of the alarms table.
var Alarms = Schema[monitoring.Alarm]{
	Name: "alarms",
	SearchFields: func(a monitoring.Alarm) []string {
		return []string{a.Name, a.OutageID, a.DownReason}
	},
	Categories: map[Category]func(monitoring.Alarm) bool{
		AlarmsCritical: func(a monitoring.Alarm) bool { return a.Status.IsCritical() },
		AlarmsWarning:  func(a monitoring.Alarm) bool { return !a.Status.IsCritical() },
	},
	SortKeys: map[string]Compare[monitoring.Alarm]{
		"name":        func(a, b monitoring.Alarm) int { return strings.Compare(a.Name, b.Name) },
		"outage_id":   func(a, b monitoring.Alarm) int { return strings.Compare(a.OutageID, b.OutageID) },
		"down_reason": func(a, b monitoring.Alarm) int { return strings.Compare(a.DownReason, b.DownReason) },
		"status":      func(a, b monitoring.Alarm) int { return cmp.Compare(a.Status, b.Status) },
		"downtime_millis": func(a, b monitoring.Alarm) int {
			return cmp.Compare(a.DowntimeMillis, b.DowntimeMillis)
		},
		"last_polled_time": func(a, b monitoring.Alarm) int {
			return a.LastPolledTime.Compare(b.LastPolledTime)
		},
	},
	DefaultSortKey:   "downtime_millis",
	DefaultDirection: Desc,
}

package monitoring

import (
	"encoding/json"
	"time"
)

// MonitorStatus is the health state reported for a monitor.
type MonitorStatus int

const (
	StatusDown        MonitorStatus = 0
	StatusUp          MonitorStatus = 1
	StatusTrouble     MonitorStatus = 2
	StatusConfigError MonitorStatus = 10
)

// Label returns the table label for the status.
func (s MonitorStatus) Label() string {
	switch s {
	case StatusUp:
		return "Up"
	case StatusTrouble:
		return "Critical"
	default:
		return "Down"
	}
}

// IsDown reports whether the status counts as down (hard down or config error).
func (s MonitorStatus) IsDown() bool {
	return s == StatusDown || s == StatusConfigError
}

// Response time bands used to colour the attribute value.
const (
	BandOK      = "ok"
	BandWarning = "warning"
	BandError   = "error"
)

// ResponseBand classifies a response time value.
func ResponseBand(value float64) string {
	switch {
	case value > 5000:
		return BandError
	case value > 2000:
		return BandWarning
	default:
		return BandOK
	}
}

// MonitorMetric is the latest polled metric of a monitor.
type MonitorMetric struct {
	MonitorID      string        `json:"monitor_id"`
	MonitorName    string        `json:"monitor_name"`
	MonitorType    string        `json:"monitor_type"`
	MonitorStatus  MonitorStatus `json:"monitor_status"`
	AttributeValue float64       `json:"attribute_value"`
	Unit           string        `json:"unit"`
	LastPolledTime time.Time     `json:"last_polled_time"`
}

// UnmarshalJSON accepts last_polled_time as RFC3339 text or epoch milliseconds.
func (m *MonitorMetric) UnmarshalJSON(data []byte) error {
	type alias MonitorMetric
	aux := struct {
		*alias
		MonitorID      flexibleID      `json:"monitor_id"`
		LastPolledTime json.RawMessage `json:"last_polled_time"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	polled, err := parseTimestamp(aux.LastPolledTime)
	if err != nil {
		return err
	}
	m.MonitorID = string(aux.MonitorID)
	m.LastPolledTime = polled
	return nil
}

// MonitorRef is the minimal monitor identity used by selection lists.
type MonitorRef struct {
	MonitorID   string `json:"monitor_id"`
	MonitorName string `json:"monitor_name"`
}

// UnmarshalJSON tolerates numeric monitor ids.
func (r *MonitorRef) UnmarshalJSON(data []byte) error {
	var aux struct {
		MonitorID   flexibleID `json:"monitor_id"`
		MonitorName string     `json:"monitor_name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.MonitorID = string(aux.MonitorID)
	r.MonitorName = aux.MonitorName
	return nil
}

// StatusSummary counts monitors per status for the summary cards.
type StatusSummary struct {
	Up           int `json:"up"`
	Trouble      int `json:"trouble"`
	ConfigErrors int `json:"config_errors"`
	Down         int `json:"down"`
}

// Summarize counts monitors by status. Unknown statuses are not counted.
func Summarize(metrics []MonitorMetric) StatusSummary {
	var summary StatusSummary
	for _, m := range metrics {
		switch m.MonitorStatus {
		case StatusUp:
			summary.Up++
		case StatusTrouble:
			summary.Trouble++
		case StatusConfigError:
			summary.ConfigErrors++
		case StatusDown:
			summary.Down++
		}
	}
	return summary
}

// ChartPoint is one sample of the performance chart.
type ChartPoint struct {
	LastPolledTime time.Time `json:"last_polled_time"`
	AttributeValue float64   `json:"attribute_value"`
}

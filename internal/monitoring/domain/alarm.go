package monitoring

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlarmSeverity is the severity of an outage.
type AlarmSeverity int

const (
	SeverityWarning  AlarmSeverity = 1
	SeverityCritical AlarmSeverity = 2
)

// IsCritical reports whether the severity is critical. Every other value is a warning.
func (s AlarmSeverity) IsCritical() bool {
	return s == SeverityCritical
}

// Label returns the table label for the severity.
func (s AlarmSeverity) Label() string {
	if s.IsCritical() {
		return "Critical"
	}
	return "Warning"
}

// Alarm is a recorded outage tied to a monitor.
type Alarm struct {
	OutageID       string        `json:"outage_id"`
	Name           string        `json:"name"`
	Status         AlarmSeverity `json:"status"`
	DowntimeMillis int64         `json:"downtime_millis"`
	DownReason     string        `json:"down_reason"`
	LastPolledTime time.Time     `json:"last_polled_time"`
}

// UnmarshalJSON accepts last_polled_time as RFC3339 text or epoch milliseconds.
func (a *Alarm) UnmarshalJSON(data []byte) error {
	type alias Alarm
	aux := struct {
		*alias
		OutageID       flexibleID      `json:"outage_id"`
		LastPolledTime json.RawMessage `json:"last_polled_time"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	polled, err := parseTimestamp(aux.LastPolledTime)
	if err != nil {
		return err
	}
	if a.DowntimeMillis < 0 {
		a.DowntimeMillis = 0
	}
	a.OutageID = string(aux.OutageID)
	a.LastPolledTime = polled
	return nil
}

// CountCritical counts critical alarms.
func CountCritical(alarms []Alarm) int {
	count := 0
	for _, alarm := range alarms {
		if alarm.Status.IsCritical() {
			count++
		}
	}
	return count
}

// FormatDuration renders milliseconds as "<hours>h <minutes>m"; seconds are truncated.
func FormatDuration(millis int64) string {
	if millis < 0 {
		millis = 0
	}
	hours := millis / (1000 * 60 * 60)
	minutes := (millis % (1000 * 60 * 60)) / (1000 * 60)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

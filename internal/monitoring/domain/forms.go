package monitoring

import (
	"encoding/json"
	"net/url"
	"strings"
)

const (
	MonitorTypeWebsite = "website"
	MonitorTypeAPI     = "api"
	MonitorTypeServer  = "server"

	DefaultCheckFrequency = 5
	MinCheckFrequency     = 1
	MaxCheckFrequency     = 60

	urlPlaceholder = "https://"
)

// CreateMonitorSpec is the create-monitor form.
type CreateMonitorSpec struct {
	DisplayName    string `json:"display_name"`
	Website        string `json:"website"`
	CheckFrequency int    `json:"check_frequency"`
	Type           string `json:"type"`
}

// Normalize trims input and applies form defaults.
func (s CreateMonitorSpec) Normalize() CreateMonitorSpec {
	s.DisplayName = strings.TrimSpace(s.DisplayName)
	s.Website = strings.TrimSpace(s.Website)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	if s.Type == "" {
		s.Type = MonitorTypeWebsite
	}
	if s.CheckFrequency == 0 {
		s.CheckFrequency = DefaultCheckFrequency
	}
	return s
}

// Validate checks the form. The bare "https://" placeholder counts as empty.
func (s CreateMonitorSpec) Validate() error {
	if s.DisplayName == "" {
		return NewValidationError("display_name", "is required")
	}
	if s.Website == "" || s.Website == urlPlaceholder {
		return NewValidationError("website", "is required")
	}
	parsed, err := url.Parse(s.Website)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return NewValidationError("website", "must be an http or https url")
	}
	if s.CheckFrequency < MinCheckFrequency || s.CheckFrequency > MaxCheckFrequency {
		return NewValidationError("check_frequency", "must be between 1 and 60 minutes")
	}
	switch s.Type {
	case MonitorTypeWebsite, MonitorTypeAPI, MonitorTypeServer:
	default:
		return NewValidationError("type", "must be one of website, api, server")
	}
	return nil
}

// CreatedMonitor is the reference returned after creating a monitor.
type CreatedMonitor struct {
	MonitorID string          `json:"monitor_id,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// GroupDefaults carries the fixed profile ids attached to every new group.
type GroupDefaults struct {
	HealthcheckProfileID  string   `yaml:"healthcheck_profile_id"`
	NotificationProfileID string   `yaml:"notification_profile_id"`
	UserGroupIDs          []string `yaml:"user_group_ids"`
}

// CreateGroupSpec is the create-monitor-group payload.
type CreateGroupSpec struct {
	DisplayName           string   `json:"display_name"`
	Monitors              []string `json:"monitors"`
	HealthThresholdCount  int      `json:"health_threshold_count"`
	GroupType             int      `json:"group_type"`
	AlertPeriodically     bool     `json:"alert_periodically"`
	AlertFrequency        int      `json:"alert_frequency"`
	HealingPeriod         int      `json:"healing_period"`
	SelectionType         int      `json:"selection_type"`
	SuppressAlert         bool     `json:"suppress_alert"`
	HealthcheckProfileID  string   `json:"healthcheck_profile_id"`
	NotificationProfileID string   `json:"notification_profile_id"`
	UserGroupIDs          []string `json:"user_group_ids"`
	Tags                  []string `json:"tags"`
}

// NewCreateGroupSpec builds a group payload with the form defaults.
func NewCreateGroupSpec(name string, monitorIDs []string, defaults GroupDefaults) CreateGroupSpec {
	userGroups := append([]string{}, defaults.UserGroupIDs...)
	return CreateGroupSpec{
		DisplayName:           strings.TrimSpace(name),
		Monitors:              dedupeIDs(monitorIDs),
		HealthThresholdCount:  1,
		GroupType:             1,
		AlertPeriodically:     true,
		AlertFrequency:        10,
		HealingPeriod:         15,
		SelectionType:         2,
		SuppressAlert:         false,
		HealthcheckProfileID:  defaults.HealthcheckProfileID,
		NotificationProfileID: defaults.NotificationProfileID,
		UserGroupIDs:          userGroups,
		Tags:                  []string{},
	}
}

// Validate checks the group payload.
func (s CreateGroupSpec) Validate() error {
	if strings.TrimSpace(s.DisplayName) == "" {
		return NewValidationError("display_name", "is required")
	}
	if len(s.Monitors) == 0 {
		return NewValidationError("monitors", "select at least one monitor")
	}
	if s.HealthThresholdCount < 1 {
		return NewValidationError("health_threshold_count", "must be at least 1")
	}
	if s.AlertPeriodically && s.AlertFrequency <= 0 {
		return NewValidationError("alert_frequency", "must be positive")
	}
	return nil
}

// GroupRef is the reference returned after creating a group.
type GroupRef struct {
	GroupID string `json:"group_id"`
}

// UnmarshalJSON tolerates numeric group ids.
func (g *GroupRef) UnmarshalJSON(data []byte) error {
	var aux struct {
		GroupID flexibleID `json:"group_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.GroupID = string(aux.GroupID)
	return nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	monitoring "monitor-dashboard/internal/monitoring/domain"
)

// APIConfig describes the monitoring API connection.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Token     string        `yaml:"token"`
	TokenFile string        `yaml:"token_file"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	JSON  bool   `yaml:"json"`
	Level string `yaml:"level"`
}

// NATSConfig enables the snapshot mirror when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Config is the dashboard service configuration.
type Config struct {
	HTTPAddr      string                   `yaml:"http_addr"`
	API           APIConfig                `yaml:"api"`
	PollInterval  time.Duration            `yaml:"poll_interval"`
	Log           LogConfig                `yaml:"log"`
	NATS          NATSConfig               `yaml:"nats"`
	CompactMode   bool                     `yaml:"compact_mode"`
	GroupDefaults monitoring.GroupDefaults `yaml:"group_defaults"`
}

// Load reads configuration from the environment, then overlays the YAML file named by
// DASHBOARD_CONFIG when set.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: getenvDefault("HTTP_ADDR", ":8090"),
		API: APIConfig{
			BaseURL:   getenvDefault("API_BASE_URL", "http://localhost:8080/api"),
			Timeout:   getenvDuration("API_TIMEOUT", 30*time.Second),
			Token:     os.Getenv("API_TOKEN"),
			TokenFile: os.Getenv("API_TOKEN_FILE"),
		},
		PollInterval: getenvDuration("POLL_INTERVAL", 30*time.Second),
		Log: LogConfig{
			JSON:  getenvBool("LOG_JSON", false),
			Level: getenvDefault("LOG_LEVEL", "info"),
		},
		NATS: NATSConfig{
			URL:           os.Getenv("NATS_URL"),
			SubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "dashboard"),
		},
		CompactMode: getenvBool("COMPACT_MODE", false),
		GroupDefaults: monitoring.GroupDefaults{
			HealthcheckProfileID:  os.Getenv("GROUP_HEALTHCHECK_PROFILE_ID"),
			NotificationProfileID: os.Getenv("GROUP_NOTIFICATION_PROFILE_ID"),
			UserGroupIDs:          splitCSV(os.Getenv("GROUP_USER_GROUP_IDS")),
		},
	}

	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: http addr required")
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: invalid api base url %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("config: api timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll interval must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(value) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q", value)
	}
	return level, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

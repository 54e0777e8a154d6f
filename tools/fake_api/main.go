// Command fake_api serves a synthetic monitoring API for local dashboard runs and load
// checks. Statuses drift on every poll; latency and failures are injectable.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/source"
)

type fakeAPI struct {
	start    time.Time
	latency  time.Duration
	failRate float64
	token    string
	logger   *slog.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	monitors   []monitoring.MonitorMetric
	alarms     []monitoring.Alarm
	byEndpoint map[string]int64
	started    map[string]time.Time
	totalCalls int64
	monitorSeq int64
	groupSeq   int64
	outageSeq  int64
}

var monitorTypes = []string{"URL", "RESTAPI", "SERVER", "DNS", "PING"}

func main() {
	addr := getenvDefault("FAKE_API_ADDR", ":18090")
	latencyMs := getenvIntDefault("FAKE_API_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_API_FAIL_RATE", 0)
	count := getenvIntDefault("FAKE_API_MONITORS", 40)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	srv := newFakeAPI(count, time.Duration(latencyMs)*time.Millisecond, failRate, os.Getenv("FAKE_API_TOKEN"), logger)

	router := chi.NewRouter()
	router.Get("/healthz", srv.handleHealth)
	router.Get("/stats", srv.handleStats)
	router.Route("/api", func(r chi.Router) {
		r.Use(srv.instrument)
		r.Get(source.EndpointMetrics, srv.handleMetrics)
		r.Get(source.EndpointAlarms, srv.handleAlarms)
		r.Get(source.EndpointMonitors, srv.handleMonitors)
		r.Post(source.EndpointCreateMonitor, srv.handleCreateMonitor)
		r.Post(source.EndpointCreateGroup, srv.handleCreateGroup)
		r.Get(source.EndpointRCA, srv.handleRCA)
		r.Get(source.EndpointMonitorDetails, srv.handleDetails)
	})

	logger.Info("fake monitoring api listening", "addr", addr, "monitors", count, "latency", srv.latency, "fail_rate", failRate)
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Error("fake monitoring api stopped", "error", err)
		os.Exit(1)
	}
}

func newFakeAPI(count int, latency time.Duration, failRate float64, token string, logger *slog.Logger) *fakeAPI {
	s := &fakeAPI{
		start:      time.Now().UTC(),
		latency:    latency,
		failRate:   failRate,
		token:      token,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		byEndpoint: make(map[string]int64),
		started:    make(map[string]time.Time),
	}
	for i := 0; i < count; i++ {
		s.monitors = append(s.monitors, monitoring.MonitorMetric{
			MonitorID:   strconv.Itoa(1000 + i),
			MonitorName: fmt.Sprintf("monitor-%03d", i),
			MonitorType: monitorTypes[i%len(monitorTypes)],
			Unit:        "ms",
		})
	}
	s.drift()
	return s
}

// instrument applies auth, latency and failure injection to API routes.
func (s *fakeAPI) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.totalCalls, 1)
		s.mu.Lock()
		s.byEndpoint[r.URL.Path]++
		fail := s.failRate > 0 && s.rng.Float64() < s.failRate
		s.mu.Unlock()

		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if fail {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "fake api failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *fakeAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"started_at":  s.start.Format(time.RFC3339),
		"total":       atomic.LoadInt64(&s.totalCalls),
		"by_endpoint": s.byEndpoint,
		"monitors":    len(s.monitors),
		"alarms":      len(s.alarms),
	})
}

func (s *fakeAPI) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.drift()
	out := append([]monitoring.MonitorMetric(nil), s.monitors...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *fakeAPI) handleAlarms(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]monitoring.Alarm(nil), s.alarms...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *fakeAPI) handleMonitors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	refs := make([]monitoring.MonitorRef, 0, len(s.monitors))
	for _, m := range s.monitors {
		refs = append(refs, monitoring.MonitorRef{MonitorID: m.MonitorID, MonitorName: m.MonitorName})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, refs)
}

func (s *fakeAPI) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DisplayName    string `json:"display_name"`
		Website        string `json:"website"`
		CheckFrequency string `json:"check_frequency"`
		Type           string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if strings.TrimSpace(payload.DisplayName) == "" || strings.TrimSpace(payload.Website) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "display_name and website required"})
		return
	}
	if _, err := strconv.Atoi(payload.CheckFrequency); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "check_frequency must be numeric"})
		return
	}
	id := atomic.AddInt64(&s.monitorSeq, 1)
	s.mu.Lock()
	s.monitors = append(s.monitors, monitoring.MonitorMetric{
		MonitorID:      strconv.FormatInt(5000+id, 10),
		MonitorName:    payload.DisplayName,
		MonitorType:    "URL",
		MonitorStatus:  monitoring.StatusUp,
		Unit:           "ms",
		LastPolledTime: time.Now().UTC(),
	})
	s.mu.Unlock()
	s.logger.Info("monitor created", "display_name", payload.DisplayName, "type", payload.Type)
	writeJSON(w, http.StatusOK, map[string]any{"monitor_id": 5000 + id})
}

func (s *fakeAPI) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var payload monitoring.CreateGroupSpec
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if err := payload.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	id := atomic.AddInt64(&s.groupSeq, 1)
	writeJSON(w, http.StatusOK, map[string]any{"group_id": fmt.Sprintf("group-%d", id)})
}

func (s *fakeAPI) handleRCA(w http.ResponseWriter, r *http.Request) {
	monitorID := r.URL.Query().Get("monitorId")
	m, ok := s.find(monitorID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "monitor not found"})
		return
	}
	if m.MonitorStatus == monitoring.StatusUp {
		writeJSON(w, http.StatusOK, "No outage recorded for "+m.MonitorName)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"monitor_id": m.MonitorID,
		"reason":     "connection timeout",
		"checks": []map[string]any{
			{"location": "eu-west", "result": "timeout"},
			{"location": "us-east", "result": "ok"},
		},
	})
}

func (s *fakeAPI) handleDetails(w http.ResponseWriter, r *http.Request) {
	m, ok := s.find(r.URL.Query().Get("monitorId"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "monitor not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"monitor_id":   m.MonitorID,
		"display_name": m.MonitorName,
		"type":         m.MonitorType,
		"locations":    []string{"eu-west", "us-east"},
	})
}

func (s *fakeAPI) find(monitorID string) (monitoring.MonitorMetric, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.monitors {
		if m.MonitorID == monitorID {
			return m, true
		}
	}
	return monitoring.MonitorMetric{}, false
}

// drift moves every monitor to a new sample and opens or closes outages. Callers hold mu.
func (s *fakeAPI) drift() {
	now := time.Now().UTC()
	open := make(map[string]int, len(s.alarms))
	for i, alarm := range s.alarms {
		open[alarm.Name] = i
	}
	for i := range s.monitors {
		m := &s.monitors[i]
		m.LastPolledTime = now
		m.AttributeValue = float64(50 + s.rng.Intn(3000))
		switch roll := s.rng.Float64(); {
		case roll < 0.05:
			m.MonitorStatus = monitoring.StatusDown
			m.AttributeValue = float64(5000 + s.rng.Intn(5000))
		case roll < 0.1:
			m.MonitorStatus = monitoring.StatusTrouble
		case roll < 0.12:
			m.MonitorStatus = monitoring.StatusConfigError
		default:
			m.MonitorStatus = monitoring.StatusUp
		}
		idx, hasAlarm := open[m.MonitorName]
		switch {
		case m.MonitorStatus == monitoring.StatusUp && hasAlarm:
			delete(s.started, s.alarms[idx].OutageID)
			s.alarms[idx].Name = ""
		case m.MonitorStatus != monitoring.StatusUp && !hasAlarm:
			severity := monitoring.SeverityWarning
			if m.MonitorStatus == monitoring.StatusDown {
				severity = monitoring.SeverityCritical
			}
			outageID := strconv.FormatInt(atomic.AddInt64(&s.outageSeq, 1), 10)
			s.started[outageID] = now
			s.alarms = append(s.alarms, monitoring.Alarm{
				OutageID:       outageID,
				Name:           m.MonitorName,
				Status:         severity,
				DownReason:     "check failed",
				LastPolledTime: now,
			})
		case hasAlarm:
			s.alarms[idx].DowntimeMillis = now.Sub(s.started[s.alarms[idx].OutageID]).Milliseconds()
			s.alarms[idx].LastPolledTime = now
		}
	}
	active := s.alarms[:0]
	for _, alarm := range s.alarms {
		if alarm.Name != "" {
			active = append(active, alarm)
		}
	}
	s.alarms = active
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"monitor-dashboard/internal/dashboard/application"
	"monitor-dashboard/internal/export"
	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/tabular"
)

const maxBodyBytes = 1 << 20

// Handler provides dashboard HTTP endpoints.
type Handler struct {
	service *application.Service
	logger  *slog.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("dashboard handler: nil service")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}, nil
}

// RegisterRoutes mounts the dashboard API under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/monitors", h.handleMonitors)
		r.Post("/monitors", h.handleCreateMonitor)
		r.Get("/monitors/export", h.handleExportMonitors)
		r.Get("/monitors/{monitorID}/details", h.handleMonitorDetails)
		r.Get("/alarms", h.handleAlarms)
		r.Get("/alarms/export", h.handleExportAlarms)
		r.Get("/summary", h.handleSummary)
		r.Get("/performance", h.handlePerformance)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/favorites", h.handleListFavorites)
		r.Put("/favorites/{monitorID}", h.handleAddFavorite)
		r.Delete("/favorites/{monitorID}", h.handleRemoveFavorite)
		r.Post("/favorites/{monitorID}/toggle", h.handleToggleFavorite)
		r.Get("/monitor-options", h.handleMonitorOptions)
		r.Post("/groups", h.handleCreateGroup)
		r.Get("/rca/{monitorID}", h.handleRCA)
	})
}

func (h *Handler) handleMonitors(w http.ResponseWriter, r *http.Request) {
	params, favoritesOnly, err := h.monitorParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Monitors(params, favoritesOnly))
}

func (h *Handler) handleAlarms(w http.ResponseWriter, r *http.Request) {
	params, err := tabular.Alarms.ParseParams(r.URL.Query(), "severity", h.service.DefaultPageSize())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Alarms(params))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Summary())
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Performance(r.URL.Query().Get("monitor_id")))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RefreshAll(r.Context())
	if err != nil {
		h.logger.Warn("manual refresh failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleExportMonitors(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	params, favoritesOnly, err := h.monitorParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.service.ExportMonitors(params, favoritesOnly, format)
	if err != nil {
		h.logger.Error("monitor export failed", "format", format, "error", err)
		writeError(w, err)
		return
	}
	writeAttachment(w, out)
}

func (h *Handler) handleExportAlarms(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	params, err := tabular.Alarms.ParseParams(r.URL.Query(), "severity", h.service.DefaultPageSize())
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.service.ExportAlarms(params, format)
	if err != nil {
		h.logger.Error("alarm export failed", "format", format, "error", err)
		writeError(w, err)
		return
	}
	writeAttachment(w, out)
}

type favoritesResponse struct {
	Favorites []string `json:"favorites"`
}

type toggleFavoriteResponse struct {
	MonitorID string   `json:"monitor_id"`
	Favorite  bool     `json:"favorite"`
	Favorites []string `json:"favorites"`
}

func (h *Handler) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, favoritesResponse{Favorites: h.service.Favorites().List()})
}

func (h *Handler) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Favorites().Add(chi.URLParam(r, "monitorID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse{Favorites: h.service.Favorites().List()})
}

func (h *Handler) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Favorites().Remove(chi.URLParam(r, "monitorID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse{Favorites: h.service.Favorites().List()})
}

func (h *Handler) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	monitorID := strings.TrimSpace(chi.URLParam(r, "monitorID"))
	starred, err := h.service.Favorites().Toggle(monitorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleFavoriteResponse{
		MonitorID: monitorID,
		Favorite:  starred,
		Favorites: h.service.Favorites().List(),
	})
}

func (h *Handler) handleMonitorOptions(w http.ResponseWriter, r *http.Request) {
	refs, err := h.service.MonitorOptions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

type createMonitorRequest struct {
	DisplayName    string          `json:"display_name"`
	Website        string          `json:"website"`
	CheckFrequency json.RawMessage `json:"check_frequency"`
	Type           string          `json:"type"`
}

func (h *Handler) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req createMonitorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	frequency, err := parseFrequency(req.CheckFrequency)
	if err != nil {
		writeError(w, err)
		return
	}
	created, err := h.service.CreateMonitor(r.Context(), monitoring.CreateMonitorSpec{
		DisplayName:    req.DisplayName,
		Website:        req.Website,
		CheckFrequency: frequency,
		Type:           req.Type,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type createGroupRequest struct {
	DisplayName string   `json:"display_name"`
	Monitors    []string `json:"monitors"`
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ref, err := h.service.CreateGroup(r.Context(), req.DisplayName, req.Monitors)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (h *Handler) handleRCA(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RCA(r.Context(), chi.URLParam(r, "monitorID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleMonitorDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.MonitorDetails(r.Context(), chi.URLParam(r, "monitorID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(details)
}

func (h *Handler) monitorParams(r *http.Request) (tabular.Params, bool, error) {
	query := r.URL.Query()
	params, err := tabular.Monitors.ParseParams(query, "status", h.service.DefaultPageSize())
	if err != nil {
		return tabular.Params{}, false, err
	}
	favoritesOnly := false
	if value := strings.TrimSpace(query.Get("favorites")); value != "" {
		favoritesOnly, err = strconv.ParseBool(value)
		if err != nil {
			return tabular.Params{}, false, monitoring.NewValidationError("favorites", "must be a boolean")
		}
	}
	return params, favoritesOnly, nil
}

func writeAttachment(w http.ResponseWriter, out application.Export) {
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+out.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return monitoring.NewValidationError("", "request body is required")
		}
		return monitoring.NewValidationError("", "invalid json body")
	}
	return nil
}

// parseFrequency accepts the check frequency as a number or a numeric string.
func parseFrequency(raw json.RawMessage) (int, error) {
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if value == "" || value == "null" {
		return 0, nil
	}
	frequency, err := strconv.Atoi(value)
	if err != nil {
		return 0, monitoring.NewValidationError("check_frequency", "must be a whole number of minutes")
	}
	return frequency, nil
}

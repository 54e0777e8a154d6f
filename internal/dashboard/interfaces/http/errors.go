package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"monitor-dashboard/internal/dashboard/application"
	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/refresh"
	"monitor-dashboard/internal/source"
)

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status, resp := classify(err)
	writeJSON(w, status, resp)
}

func classify(err error) (int, errorResponse) {
	var (
		validation *monitoring.ValidationError
		apiErr     *source.APIError
		netErr     *source.NetworkError
		parseErr   *source.ParseError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Message: validation.Error(), Field: validation.Field}
	case errors.Is(err, monitoring.ErrEmptyMonitorID):
		return http.StatusBadRequest, errorResponse{Message: "monitor id is required"}
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		return status, errorResponse{Message: apiErr.Message}
	case errors.As(err, &netErr):
		if netErr.Timeout {
			return http.StatusGatewayTimeout, errorResponse{Message: application.ErrorMessage(err)}
		}
		return http.StatusBadGateway, errorResponse{Message: "monitoring api unreachable"}
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, errorResponse{Message: "malformed response from monitoring api"}
	case errors.Is(err, refresh.ErrStopped):
		return http.StatusServiceUnavailable, errorResponse{Message: "dashboard is shutting down"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorResponse{Message: "request canceled"}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "internal error"}
	}
}

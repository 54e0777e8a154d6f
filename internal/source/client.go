package source

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	monitoring "monitor-dashboard/internal/monitoring/domain"
	"monitor-dashboard/internal/observability/metrics"
)

// Defaults of the monitoring API connection.
const (
	DefaultBaseURL = "http://localhost:8080/api"
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 16 << 20
)

// Endpoints of the monitoring API.
const (
	EndpointMetrics        = "/get-metrics"
	EndpointAlarms         = "/get-alarms"
	EndpointMonitors       = "/get-monitors"
	EndpointCreateMonitor  = "/create-monitor"
	EndpointCreateGroup    = "/create-group"
	EndpointRCA            = "/get-rca-data"
	EndpointMonitorDetails = "/get-monitor-details"
)

// TokenSource supplies the bearer token for each request. An empty token sends the
// request unauthenticated.
type TokenSource interface {
	Token() string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client; its own timeout applies.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTokenSource attaches bearer tokens from ts.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is a minimal monitoring API client. It never retries.
type Client struct {
	baseURL string
	timeout time.Duration
	tokens  TokenSource
	client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a monitoring API client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errEmptyBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// BaseURL returns the normalized API base url.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchMonitors returns the latest metric of every monitor.
func (c *Client) FetchMonitors(ctx context.Context) ([]monitoring.MonitorMetric, error) {
	var out []monitoring.MonitorMetric
	if err := c.doJSON(ctx, http.MethodGet, EndpointMetrics, nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []monitoring.MonitorMetric{}
	}
	return out, nil
}

// FetchAlarms returns the recorded outages.
func (c *Client) FetchAlarms(ctx context.Context) ([]monitoring.Alarm, error) {
	var out []monitoring.Alarm
	if err := c.doJSON(ctx, http.MethodGet, EndpointAlarms, nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []monitoring.Alarm{}
	}
	return out, nil
}

// ListMonitors returns monitor identities for selection lists.
func (c *Client) ListMonitors(ctx context.Context) ([]monitoring.MonitorRef, error) {
	var out []monitoring.MonitorRef
	if err := c.doJSON(ctx, http.MethodGet, EndpointMonitors, nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []monitoring.MonitorRef{}
	}
	return out, nil
}

// CreateMonitor submits the create-monitor form.
func (c *Client) CreateMonitor(ctx context.Context, spec monitoring.CreateMonitorSpec) (monitoring.CreatedMonitor, error) {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		return monitoring.CreatedMonitor{}, err
	}
	body := createMonitorRequest{
		DisplayName:    spec.DisplayName,
		Website:        spec.Website,
		CheckFrequency: strconv.Itoa(spec.CheckFrequency),
		Type:           spec.Type,
	}
	raw, err := c.do(ctx, http.MethodPost, EndpointCreateMonitor, nil, body)
	if err != nil {
		return monitoring.CreatedMonitor{}, err
	}
	created := monitoring.CreatedMonitor{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return created, nil
	}
	if !json.Valid(raw) {
		return monitoring.CreatedMonitor{}, &ParseError{Endpoint: EndpointCreateMonitor, Err: errInvalidJSON}
	}
	created.Raw = json.RawMessage(raw)
	if raw[0] == '{' {
		var ref monitoring.MonitorRef
		if err := json.Unmarshal(raw, &ref); err == nil {
			created.MonitorID = ref.MonitorID
		}
	}
	return created, nil
}

// CreateMonitorGroup submits the create-group form.
func (c *Client) CreateMonitorGroup(ctx context.Context, spec monitoring.CreateGroupSpec) (monitoring.GroupRef, error) {
	if err := spec.Validate(); err != nil {
		return monitoring.GroupRef{}, err
	}
	var ref monitoring.GroupRef
	if err := c.doJSON(ctx, http.MethodPost, EndpointCreateGroup, nil, spec, &ref); err != nil {
		return monitoring.GroupRef{}, err
	}
	return ref, nil
}

// FetchRCA returns the root cause analysis payload of a monitor as received.
func (c *Client) FetchRCA(ctx context.Context, monitorID string) (monitoring.RCAReport, error) {
	monitorID = strings.TrimSpace(monitorID)
	if monitorID == "" {
		return monitoring.RCAReport{}, monitoring.ErrEmptyMonitorID
	}
	raw, err := c.do(ctx, http.MethodGet, EndpointRCA, url.Values{"monitorId": {monitorID}}, nil)
	if err != nil {
		return monitoring.RCAReport{}, err
	}
	return monitoring.RCAReport{MonitorID: monitorID, Raw: raw}, nil
}

// FetchMonitorDetails returns the opaque details document of a monitor.
func (c *Client) FetchMonitorDetails(ctx context.Context, monitorID string) (json.RawMessage, error) {
	monitorID = strings.TrimSpace(monitorID)
	if monitorID == "" {
		return nil, monitoring.ErrEmptyMonitorID
	}
	var out json.RawMessage
	query := url.Values{"monitorId": {monitorID}}
	if err := c.doJSON(ctx, http.MethodGet, EndpointMonitorDetails, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type createMonitorRequest struct {
	DisplayName    string `json:"display_name"`
	Website        string `json:"website"`
	CheckFrequency string `json:"check_frequency"`
	Type           string `json:"type"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	raw, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &ParseError{Endpoint: path, Err: errEmptyBody}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{Endpoint: path, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	start := time.Now()
	raw, err := c.roundTrip(ctx, method, path, query, body)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveFetch(path, result, time.Since(start))
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	reqBody := bytes.NewReader(nil)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.Token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("source request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, newNetworkError(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newNetworkError(path, err)
	}
	c.logger.Debug("source request", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(path, resp.StatusCode, raw)
	}
	return raw, nil
}

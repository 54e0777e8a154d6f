package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	errEmptyBaseURL = errors.New("source: empty base url")
	errEmptyBody    = errors.New("source: empty response body")
	errInvalidJSON  = errors.New("source: invalid json")
)

// NetworkError reports a request that produced no response.
type NetworkError struct {
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("source: %s: request timed out", e.Endpoint)
	}
	return fmt.Sprintf("source: %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError reports a non-2xx response from the monitoring API.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("source: %s: http %d: %s", e.Endpoint, e.Status, e.Message)
}

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("source: %s: malformed response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a timed out request.
func IsTimeout(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Timeout
}

func newNetworkError(endpoint string, err error) *NetworkError {
	return &NetworkError{Endpoint: endpoint, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// newAPIError takes the message from a "message" or "error" field of a JSON body and
// falls back to the status text.
func newAPIError(endpoint string, status int, body []byte) *APIError {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		message = rawText(payload.Message)
		if message == "" {
			message = rawText(payload.Error)
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = fmt.Sprintf("http %d", status)
	}
	return &APIError{Endpoint: endpoint, Status: status, Message: message}
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(string(raw))
}

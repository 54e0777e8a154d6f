package monitoring

import (
	"bytes"
	"encoding/json"
)

// RCAReport is the opaque root-cause-analysis payload for a monitor.
type RCAReport struct {
	MonitorID string
	Raw       []byte
}

// Format renders the report for display: string payloads verbatim, JSON pretty-printed
// with two-space indentation, anything else as raw text.
func (r RCAReport) Format() string {
	raw := bytes.TrimSpace(r.Raw)
	if len(raw) == 0 {
		return ""
	}
	if !json.Valid(raw) {
		return string(r.Raw)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "Unable to format RCA data"
	}
	return buf.String()
}

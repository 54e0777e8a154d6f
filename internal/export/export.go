// Package export renders an already-filtered table as a downloadable file.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	monitoring "monitor-dashboard/internal/monitoring/domain"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat reads a format name; the empty name is JSON.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", monitoring.NewValidationError("format", "must be one of json, csv, xlsx, pdf")
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// FileName names an export "<kind>-export-YYYY-MM-DDTHH-MM.<ext>" using the UTC time.
func FileName(kind string, format Format, now time.Time) string {
	return fmt.Sprintf("%s-export-%s.%s", kind, now.UTC().Format("2006-01-02T15-04"), format)
}

// Table is a labelled, display-formatted rendition of table rows.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Encode renders the table in format.
func Encode(table Table, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return EncodeJSON(table)
	case FormatCSV:
		return EncodeCSV(table)
	case FormatXLSX:
		return EncodeXLSX(table)
	case FormatPDF:
		return EncodePDF(table)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

// EncodeJSON renders rows as an array of objects keyed by column label, keys in column
// order, indented with two spaces.
func EncodeJSON(table Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range table.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, column := range table.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(column)
			if err != nil {
				return nil, err
			}
			value := ""
			if j < len(row) {
				value = row[j]
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(encoded)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeCSV renders a header row followed by the rows.
func EncodeCSV(table Table) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(table.Columns); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

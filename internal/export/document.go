package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const sheetName = "export"

// EncodeXLSX renders the table on a single sheet with a bold header row.
func EncodeXLSX(table Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for col, label := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheetName, cell, label)
	}
	if len(table.Columns) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
			_ = f.SetCellStyle(sheetName, "A1", last, style)
		}
	}
	for i, row := range table.Rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePDF renders the table as a landscape A4 document.
func EncodePDF(table Table) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	title := table.Title
	if title == "" {
		title = "Export"
	}
	pdf.Cell(0, 8, title)
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Rows: %d", len(table.Rows)))
	pdf.Ln(8)

	width := 270.0
	if len(table.Columns) > 0 {
		width = width / float64(len(table.Columns))
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 9)
	for _, label := range table.Columns {
		pdf.CellFormat(width, 6, tr(label), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range table.Rows {
		for col := range table.Columns {
			value := ""
			if col < len(row) {
				value = row[col]
			}
			pdf.CellFormat(width, 6, tr(value), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

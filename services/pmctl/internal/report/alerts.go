// Package report renders alert listings as xlsx workbooks.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/afikmenashe/patient-alerting/services/pmctl/internal/client"
)

// AlertSheet is the worksheet name of an alert export.
const AlertSheet = "Alerts"

// AlertHeader lists the export columns in order.
var AlertHeader = []string{
	"Alert ID",
	"Patient ID",
	"Alert Time",
	"Severity",
	"Status",
	"Title",
	"Description",
	"Acknowledged By",
	"Acknowledged At",
	"Resolved By",
	"Resolved At",
	"Resolution Notes",
	"Closed By",
	"Closed At",
}

var alertColumnWidths = []float64{38, 14, 20, 12, 14, 28, 48, 18, 20, 18, 20, 36, 18, 20}

// severityFills colours the severity cell of each row.
var severityFills = map[string]string{
	"Critical":    "#F8CBAD",
	"Warning":     "#FFE699",
	"Information": "#DDEBF7",
}

// AlertsWorkbook renders alerts into a single-sheet xlsx workbook.
func AlertsWorkbook(alerts []*client.Alert) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(AlertSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	severityStyles := make(map[string]int, len(severityFills))
	for severity, color := range severityFills {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create %s style: %w", severity, err)
		}
		severityStyles[severity] = style
	}

	for col, header := range AlertHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(AlertSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(AlertSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range alertColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(AlertSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, a := range alerts {
		row := i + 2
		for col, value := range alertRow(a) {
			if err := setCellValue(f, AlertSheet, col+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
		if style, ok := severityStyles[a.Severity]; ok {
			cell, _ := excelize.CoordinatesToCellName(4, row)
			if err := f.SetCellStyle(AlertSheet, cell, cell, style); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set severity style: %w", err)
			}
		}
	}

	if err := f.SetPanes(AlertSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func alertRow(a *client.Alert) []string {
	return []string{
		a.ID,
		a.PatientID,
		formatTime(&a.AlertDateTime),
		a.Severity,
		a.Status,
		a.Title,
		deref(a.Description),
		deref(a.AcknowledgedBy),
		formatTime(a.AcknowledgedAt),
		deref(a.ResolvedBy),
		formatTime(a.ResolvedAt),
		deref(a.ResolutionNotes),
		deref(a.ClosedBy),
		formatTime(a.ClosedAt),
	}
}

func setCellValue(f *excelize.File, sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

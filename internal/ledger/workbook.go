package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Ledger column layout: amounts in column H, statuses in column J.
const (
	amountColumn = 8
	statusColumn = 10
)

// Workbook is a Ledger over a local XLSX file. Sheets are sections.
// Useful offline and as the backend the matcher tests run against.
type Workbook struct {
	path string
	file *excelize.File
}

// OpenWorkbook opens an existing XLSX workbook as a ledger.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	return &Workbook{path: path, file: f}, nil
}

// SectionTitles returns the sheet names in workbook order.
func (w *Workbook) SectionTitles() ([]string, error) {
	return w.file.GetSheetList(), nil
}

// ReadWindow reads the amount and status cells of the scan window.
func (w *Workbook) ReadWindow(section string, startRow, maxRows int) ([]Row, error) {
	rows := make([]Row, 0, maxRows)
	for r := startRow; r < startRow+maxRows; r++ {
		amountCell, err := excelize.CoordinatesToCellName(amountColumn, r)
		if err != nil {
			return nil, fmt.Errorf("naming amount cell: %w", err)
		}
		rawAmount, err := w.file.GetCellValue(section, amountCell)
		if err != nil {
			return nil, fmt.Errorf("reading amount cell %s: %w", amountCell, err)
		}

		statusCell, err := excelize.CoordinatesToCellName(statusColumn, r)
		if err != nil {
			return nil, fmt.Errorf("naming status cell: %w", err)
		}
		rawStatus, err := w.file.GetCellValue(section, statusCell)
		if err != nil {
			return nil, fmt.Errorf("reading status cell %s: %w", statusCell, err)
		}

		row := Row{Index: r, Status: parseStatus(rawStatus)}
		if amount, ok := parseCellAmount(rawAmount); ok {
			row.Amount = amount
			row.HasAmount = true
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteStatus sets the status cell and saves the workbook, so a claim
// is durable before the matcher reports it.
func (w *Workbook) WriteStatus(section string, row int, status Status) error {
	cell, err := excelize.CoordinatesToCellName(statusColumn, row)
	if err != nil {
		return fmt.Errorf("naming status cell: %w", err)
	}
	if err := w.file.SetCellValue(section, cell, string(status)); err != nil {
		return fmt.Errorf("setting status cell %s: %w", cell, err)
	}
	if err := w.file.Save(); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Workbook) Close() error {
	return w.file.Close()
}

func parseStatus(raw string) Status {
	if strings.EqualFold(strings.TrimSpace(raw), string(StatusVerified)) {
		return StatusVerified
	}
	return StatusPending
}

// parseCellAmount handles both "1234.56" and pt-BR formatted "1.234,56"
// cell text. Empty cells report no amount.
func parseCellAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "R$")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, true
	}
	normalized := strings.ReplaceAll(raw, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

package ledger

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsLedger is a Ledger over a Google Sheets spreadsheet, the
// production backend. Reads fetch the H:J window of a section in one
// call; a claim updates a single status cell.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsLedger creates a ledger over the given spreadsheet using a
// service-account credentials file.
func NewSheetsLedger(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsLedger, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &SheetsLedger{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// SectionTitles returns the tab titles of the spreadsheet.
func (s *SheetsLedger) SectionTitles() ([]string, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").Do()
	if err != nil {
		return nil, fmt.Errorf("fetching spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

// ReadWindow fetches the H:J band of the scan window in one request.
func (s *SheetsLedger) ReadWindow(section string, startRow, maxRows int) ([]Row, error) {
	rng := fmt.Sprintf("'%s'!H%d:J%d", section, startRow, startRow+maxRows-1)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Do()
	if err != nil {
		return nil, fmt.Errorf("reading range %s: %w", rng, err)
	}

	rows := make([]Row, 0, len(resp.Values))
	for i, cells := range resp.Values {
		row := Row{Index: startRow + i}
		if len(cells) > 0 {
			if amount, ok := cellAmount(cells[0]); ok {
				row.Amount = amount
				row.HasAmount = true
			}
		}
		// H, I, J: the status lives two cells past the amount. Trailing
		// empty cells are truncated from the response.
		if len(cells) > 2 {
			if text, ok := cells[2].(string); ok {
				row.Status = parseStatus(text)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteStatus updates one status cell.
func (s *SheetsLedger) WriteStatus(section string, row int, status Status) error {
	rng := fmt.Sprintf("'%s'!J%d", section, row)
	vr := &sheets.ValueRange{Values: [][]interface{}{{string(status)}}}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("updating range %s: %w", rng, err)
	}
	return nil
}

// Close is a no-op; the sheets service holds no connection state.
func (s *SheetsLedger) Close() error {
	return nil
}

// cellAmount converts an unformatted value cell into an amount. The
// API decodes numbers as float64; formula-driven sheets sometimes
// return text.
func cellAmount(cell interface{}) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case string:
		return parseCellAmount(v)
	}
	return 0, false
}

package ledger

// Status is the domain of a row's status cell. The verified mark is
// the literal text operators see in the sheet.
type Status string

const (
	StatusPending  Status = ""
	StatusVerified Status = "ok"
)

// Row is one scanned ledger row. Index is the 1-based row number
// within the section.
type Row struct {
	Index     int
	Amount    float64
	HasAmount bool
	Status    Status
}

// RowRef identifies a claimed row.
type RowRef struct {
	Section string `json:"section"`
	Row     int    `json:"row"`
}

// Ledger is the tabular store of monthly sections. The matcher only
// reads amounts and statuses within a scan window and conditionally
// writes the status cell; everything else in the sheet is off limits.
type Ledger interface {
	// SectionTitles returns every section title in sheet order.
	SectionTitles() ([]string, error)

	// ReadWindow reads up to maxRows rows of a section starting at the
	// 1-based startRow. Rows with an empty amount cell come back with
	// HasAmount false.
	ReadWindow(section string, startRow, maxRows int) ([]Row, error)

	// WriteStatus persists the status cell of one row.
	WriteStatus(section string, row int, status Status) error

	// Close releases the underlying store.
	Close() error
}

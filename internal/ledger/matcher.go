package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// ErrSectionNotFound means no section title matched the month name or
// the fallback token. Usually the spreadsheet structure changed; this
// needs an operator, not a retry.
var ErrSectionNotFound = errors.New("section not found")

// months holds the Portuguese month names used in section titles.
var months = []string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MatchKind tags the result of a match attempt.
type MatchKind string

const (
	// KindMatch means a pending row was claimed.
	KindMatch MatchKind = "MATCH"
	// KindMismatch means the window held no claimable row. This is an
	// expected business outcome, not a fault.
	KindMismatch MatchKind = "MISMATCH"
)

// MatchResult is the outcome of one match attempt.
type MatchResult struct {
	Kind          MatchKind
	Row           RowRef
	MatchedAmount float64
	// KeywordHit records whether the configured phrase appeared in the
	// raw text. It never creates or relaxes a match on its own; it is
	// carried for observability and future tie-breaking.
	KeywordHit bool
	// SawVerified records that at least one row matched on amount but
	// was already claimed.
	SawVerified bool
}

// Config tunes the matcher. Zero values get the deployment defaults.
type Config struct {
	// StartRow is the first 1-based row of the scan window; the rows
	// above it are headers and summary cells.
	StartRow int
	// MaxRows caps the scan window.
	MaxRows int
	// Tolerance is the absolute amount tolerance for a match.
	Tolerance float64
	// DefaultMonthToken resolves the section when no date is present
	// or no title matches the month name.
	DefaultMonthToken string
	// Keyword is the phrase computed as a side signal over raw text.
	Keyword string
}

func (c Config) withDefaults() Config {
	if c.StartRow == 0 {
		c.StartRow = 10
	}
	if c.MaxRows == 0 {
		c.MaxRows = 991
	}
	if c.Tolerance == 0 {
		c.Tolerance = 0.05
	}
	if c.DefaultMonthToken == "" {
		c.DefaultMonthToken = "Fevereiro"
	}
	if c.Keyword == "" {
		c.Keyword = "almoço nini"
	}
	return c
}

// Matcher locates and claims ledger rows for extracted receipt data.
type Matcher struct {
	ledger Ledger
	cfg    Config
}

// NewMatcher creates a matcher over a ledger.
func NewMatcher(l Ledger, cfg Config) *Matcher {
	return &Matcher{ledger: l, cfg: cfg.withDefaults()}
}

// Match resolves the target section from the date, scans the window
// and claims the first pending row whose amount matches any single
// price or the sum of all prices. Rows already verified are skipped so
// a row is claimed at most once. The caller must hold the single-writer
// discipline over the ledger; the claim is a plain read-then-write.
func (m *Matcher) Match(prices []float64, date, rawText string) (*MatchResult, error) {
	section, err := m.resolveSection(date)
	if err != nil {
		return nil, err
	}

	rows, err := m.ledger.ReadWindow(section, m.cfg.StartRow, m.cfg.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("reading section %q: %w", section, err)
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	keywordHit := m.keywordHit(rawText)

	slog.Info("Scanning ledger section",
		"section", section,
		"prices", prices,
		"sum", strconv.FormatFloat(sum, 'f', 2, 64),
		"keyword_hit", keywordHit,
	)

	result := &MatchResult{Kind: KindMismatch, KeywordHit: keywordHit}
	for _, row := range rows {
		if !row.HasAmount {
			continue
		}
		// Ledger amounts may be signed (debits); match on magnitude.
		amount := math.Abs(row.Amount)

		matched := false
		for _, p := range prices {
			if math.Abs(amount-p) < m.cfg.Tolerance {
				matched = true
				break
			}
		}
		// A receipt with several line items can map onto one entry.
		if !matched && len(prices) > 1 && math.Abs(amount-sum) < m.cfg.Tolerance {
			matched = true
		}
		if !matched {
			continue
		}

		if row.Status == StatusVerified {
			// Another receipt already claimed this row; a later row
			// with the same amount may still be open.
			result.SawVerified = true
			continue
		}

		if err := m.ledger.WriteStatus(section, row.Index, StatusVerified); err != nil {
			return nil, fmt.Errorf("claiming row %d in %q: %w", row.Index, section, err)
		}
		result.Kind = KindMatch
		result.Row = RowRef{Section: section, Row: row.Index}
		result.MatchedAmount = amount
		return result, nil
	}

	return result, nil
}

// resolveSection maps the date's month onto a section title. With no
// date, or no title containing the month name, it falls back to the
// section containing the default month token.
func (m *Matcher) resolveSection(date string) (string, error) {
	titles, err := m.ledger.SectionTitles()
	if err != nil {
		return "", fmt.Errorf("listing sections: %w", err)
	}

	monthName := ""
	if month, year, ok := parseDate(date); ok {
		monthName = months[month-1]
		slog.Info("Resolved target month", "month", monthName, "year", year)
		for _, t := range titles {
			if containsFold(t, monthName) {
				return t, nil
			}
		}
		slog.Warn("No section for month, trying fallback", "month", monthName)
	}

	for _, t := range titles {
		if containsFold(t, m.cfg.DefaultMonthToken) {
			return t, nil
		}
	}

	if monthName == "" {
		monthName = m.cfg.DefaultMonthToken
	}
	return "", fmt.Errorf("%w: no section for %q", ErrSectionNotFound, monthName)
}

// parseDate pulls month (1-12) and year out of a DD/MM/YYYY date; "-"
// and "." separators are accepted too. Two-digit years are normalized
// to the 2000s. Section resolution keys on the month; the year is kept
// for the audit trail.
func parseDate(date string) (month, year int, ok bool) {
	if date == "" {
		return 0, 0, false
	}
	parts := strings.FieldsFunc(date, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) != 3 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	year, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	if year < 100 {
		year += 2000
	}
	return month, year, true
}

// keywordHit reports whether the configured phrase appears in the raw
// text, ignoring case, cedillas and whitespace runs.
func (m *Matcher) keywordHit(rawText string) bool {
	if m.cfg.Keyword == "" {
		return false
	}
	return strings.Contains(normalizeText(rawText), normalizeText(m.cfg.Keyword))
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ç", "c")
	return strings.Join(strings.Fields(s), " ")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

package reconcile

import (
	"fmt"
	"log/slog"
	"strings"

	"comprova/internal/extraction"
	"comprova/internal/ledger"
)

// ReviewInput is what the operator supplies for one failed image.
// Skip leaves the image in the failures lane untouched.
type ReviewInput struct {
	// Prices is a comma-separated amount list, e.g. "10,00, 20,00".
	Prices string
	// Date is an optional DD/MM/YYYY date.
	Date string
	Skip bool
}

// AskFunc prompts the operator about one failed image, given its
// absolute path so the CLI can open it.
type AskFunc func(imagePath string) (ReviewInput, error)

// Reviewer replays the ledger match over the failures lane with
// operator-supplied data. Images that now reconcile move to the
// success lane; the rest stay put.
type Reviewer struct {
	matcher Matcher
	archive Archive
}

// NewReviewer creates a reviewer over the archive and matcher.
func NewReviewer(matcher Matcher, archive Archive) *Reviewer {
	return &Reviewer{matcher: matcher, archive: archive}
}

// Review walks every failed image, asking the operator for each.
// Returns how many images were resolved.
func (r *Reviewer) Review(ask AskFunc) (int, error) {
	paths, err := r.archive.ListFailures()
	if err != nil {
		return 0, fmt.Errorf("listing failures: %w", err)
	}

	resolved := 0
	for _, path := range paths {
		input, err := ask(r.archive.FullPath(path))
		if err != nil {
			return resolved, fmt.Errorf("prompting for %s: %w", path, err)
		}
		if input.Skip {
			continue
		}

		prices := parsePriceList(input.Prices)
		if len(prices) == 0 {
			slog.Warn("No usable price entered, leaving in failures", "path", path)
			continue
		}

		match, err := r.matcher.Match(prices, strings.TrimSpace(input.Date), "")
		if err != nil {
			slog.Warn("Manual match failed", "path", path, "error", err)
			continue
		}
		if match.Kind != ledger.KindMatch && !match.SawVerified {
			slog.Info("Still no matching row, leaving in failures", "path", path)
			continue
		}

		if _, err := r.archive.Move(path, LaneSuccess); err != nil {
			slog.Warn("Failed to move resolved image", "path", path, "error", err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

// parsePriceList accepts operator input like "10,00 20,00" or a single
// "25.00". Decimal-formatted amounts are picked out by pattern; a bare
// number falls back to direct parsing.
func parsePriceList(s string) []float64 {
	if prices := extraction.ScanAmounts(s); len(prices) > 0 {
		return prices
	}
	if amount, ok := extraction.ParseAmount(s); ok && amount > 0 {
		return []float64{amount}
	}
	return nil
}

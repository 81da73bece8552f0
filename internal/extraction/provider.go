package extraction

import "context"

// Result contains the fields extracted from a receipt image.
type Result struct {
	// Prices holds every monetary amount found, in reading order.
	// Amounts are non-negative; an empty slice means no price was found.
	Prices []float64 `json:"prices"`
	// Dates holds date candidates in DD/MM/YYYY form.
	Dates []string `json:"dates"`
	// RawText is the provider's free-text summary of the receipt.
	RawText string `json:"raw_text"`
	// Provenance names the provider that produced this result.
	Provenance string `json:"provenance"`
}

// Provider defines the interface for receipt extraction backends.
type Provider interface {
	// Extract analyzes a receipt image and returns the extracted fields.
	// A nil Result with a nil error means the provider had nothing to
	// offer; callers move on to the next provider.
	Extract(ctx context.Context, imageData []byte, contentType string) (*Result, error)
	// Close releases provider resources.
	Close() error
}

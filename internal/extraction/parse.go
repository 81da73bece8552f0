package extraction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// structuredResponse mirrors the JSON contract the vision prompt asks
// for. Prices arrive as decimal strings because the model is told to
// format them as "0.00".
type structuredResponse struct {
	Prices  []string `json:"prices"`
	Dates   []string `json:"dates"`
	RawText string   `json:"rawText"`
}

var (
	// Digit groups with optional thousand separators, ending in two
	// decimal digits, e.g. "25,00", "1.234,56", "10.00".
	priceRE = regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})\b`)
	dateRE  = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
)

// stripFences removes markdown code-fence artifacts around a model
// response and slices out the outermost JSON object if one is present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}
	return text
}

// parseStructured parses a provider response into a Result. A response
// that is not parseable as the three expected fields degrades to an
// empty extraction carrying the full text, so the pipeline keeps moving.
func parseStructured(text, provenance string) *Result {
	cleaned := stripFences(text)

	var resp structuredResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return &Result{RawText: text, Provenance: provenance}
	}

	result := &Result{
		Dates:      resp.Dates,
		RawText:    resp.RawText,
		Provenance: provenance,
	}
	if result.Dates == nil {
		result.Dates = []string{}
	}
	for _, p := range resp.Prices {
		if amount, ok := ParseAmount(p); ok {
			result.Prices = append(result.Prices, amount)
		}
	}
	return result
}

// scanText extracts prices and dates from raw OCR text by pattern
// match. This is the fallback provider's extraction layer; it trades
// structured understanding for availability.
func scanText(text, provenance string) *Result {
	result := &Result{
		Prices:     ScanAmounts(text),
		Dates:      dateRE.FindAllString(text, -1),
		RawText:    text,
		Provenance: provenance,
	}
	if result.Dates == nil {
		result.Dates = []string{}
	}
	return result
}

// ScanAmounts pulls every decimal-formatted amount out of free text.
func ScanAmounts(text string) []float64 {
	var amounts []float64
	for _, m := range priceRE.FindAllString(text, -1) {
		if amount, ok := ParseAmount(m); ok {
			amounts = append(amounts, amount)
		}
	}
	return amounts
}

// ParseAmount parses a monetary string that may use either "." or ","
// as the decimal marker, with optional thousand separators in the
// other style ("1.234,56", "1,234.56", "25,00", "10.00"). Negative or
// unparseable values are rejected.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// The last separator followed by exactly two digits is the decimal
	// marker; every other separator is a thousands mark.
	lastSep := strings.LastIndexAny(s, ".,")
	var normalized string
	if lastSep != -1 && len(s)-lastSep-1 == 2 {
		intPart := strings.Map(dropSeparators, s[:lastSep])
		normalized = intPart + "." + s[lastSep+1:]
	} else {
		normalized = strings.Map(dropSeparators, s)
	}

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil || amount < 0 {
		return 0, false
	}
	return amount, true
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}

package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultTrOCRModelURL points at a model tuned for printed text, which
// is what receipts are.
const defaultTrOCRModelURL = "https://api-inference.huggingface.co/models/microsoft/trocr-base-printed"

// TrOCR is the fallback raw-text provider, backed by the HuggingFace
// inference API. It returns unstructured text, so extraction goes
// through the regex scan layer instead of structured parsing.
type TrOCR struct {
	apiKey   string
	modelURL string
	client   *http.Client
}

// NewTrOCR creates a TrOCR provider. An empty API key yields a
// provider that reports no result rather than an error, so the chain
// degrades cleanly when the fallback is unconfigured.
func NewTrOCR(apiKey, modelURL string) *TrOCR {
	if modelURL == "" {
		modelURL = defaultTrOCRModelURL
	}
	return &TrOCR{
		apiKey:   apiKey,
		modelURL: modelURL,
		client: &http.Client{
			// Cold model loads on the inference API are slow.
			Timeout: 120 * time.Second,
		},
	}
}

// trocrResponse is one element of the inference API's response array.
type trocrResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Extract sends the raw image and pattern-scans whatever text comes
// back for amounts and dates.
func (t *TrOCR) Extract(ctx context.Context, imageData []byte, contentType string) (*Result, error) {
	if t.apiKey == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.modelURL, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling inference API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference API error (status %d): %s", resp.StatusCode, string(body))
	}

	var results []trocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(results) == 0 || results[0].GeneratedText == "" {
		return nil, nil
	}

	return scanText(results[0].GeneratedText, "trocr"), nil
}

// Close closes the provider (no-op for the HTTP client).
func (t *TrOCR) Close() error {
	return nil
}

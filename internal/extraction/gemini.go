package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// visionPrompt asks for exactly three fields so the response parses
// straight into a Result. Prices come back as decimal strings.
const visionPrompt = `Analyze this receipt image. Extract:
1. All monetary values (prices) associated with payments or totals. Ignore subtotals if a total is present.
2. The date of the transaction (DD/MM/YYYY).

Return ONLY a JSON object:
{
  "prices": ["10.50", "100.00"],
  "dates": ["12/05/2026"],
  "rawText": "summary text"
}
Format prices as "0.00". Do not use markdown code blocks.`

// Gemini is the primary structured extraction provider. It draws API
// keys from a credential pool and rotates on transient failure, so a
// single exhausted key never takes the whole phase down.
type Gemini struct {
	pool      *Pool
	modelName string
	timeout   time.Duration
	// generate issues one vision request; swapped out in tests.
	generate func(ctx context.Context, apiKey string, pngData []byte) (string, error)
}

// NewGemini creates a Gemini provider over a credential pool. The pool
// may be empty; Extract then reports no result immediately.
func NewGemini(pool *Pool, modelName string) *Gemini {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	g := &Gemini{
		pool:      pool,
		modelName: modelName,
		timeout:   30 * time.Second,
	}
	g.generate = g.generateContent
	return g
}

// Extract attempts structured extraction up to pool size + 1 times,
// rotating the credential after every failure. Exhausting the budget
// returns (nil, nil): the primary phase is over, not broken.
func (g *Gemini) Extract(ctx context.Context, imageData []byte, contentType string) (*Result, error) {
	if g.pool.Size() == 0 {
		return nil, nil
	}

	pngData, err := normalizeImage(imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	maxAttempts := g.pool.Size() + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cred, ok := g.pool.Current()
		if !ok {
			return nil, nil
		}

		text, err := g.generate(ctx, cred.Token, pngData)
		if err != nil {
			if isQuotaError(err) {
				slog.Warn("Quota exhausted on credential", "key_index", cred.Index)
			} else {
				slog.Warn("Gemini request failed", "key_index", cred.Index, "error", err)
			}
			// Rotate on any failure: the next key may be healthy even
			// when the error was not quota-shaped.
			g.pool.Rotate()
			continue
		}

		return parseStructured(text, "gemini"), nil
	}

	slog.Warn("All credential rotations exhausted", "attempts", maxAttempts)
	return nil, nil
}

// generateContent issues a single vision request with the given key.
// The genai client binds its key at construction, so every attempt
// builds a fresh client.
func (g *Gemini) generateContent(ctx context.Context, apiKey string, pngData []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.modelName)
	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(visionPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	return responseText.String(), nil
}

// Close releases provider resources. Gemini holds no persistent client.
func (g *Gemini) Close() error {
	return nil
}

// isQuotaError reports whether the failure text indicates rate limiting
// or quota exhaustion.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource exhausted")
}

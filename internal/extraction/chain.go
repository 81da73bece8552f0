package extraction

import (
	"context"
	"log/slog"
)

// Chain tries an ordered list of providers until one yields a result.
// The primary structured provider goes first; the raw-text fallback
// only runs if the primary phase is exhausted.
type Chain struct {
	providers []Provider
}

// NewChain creates a chain over the given providers, tried in order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Extract runs each provider in turn. A nil Result with nil error
// means total extraction failure; the caller records it as an OCR
// failure and routes the image to manual review. Provider errors are
// logged and treated as "no result" so a broken fallback never stalls
// the pipeline.
func (c *Chain) Extract(ctx context.Context, imageData []byte, contentType string) (*Result, error) {
	for _, p := range c.providers {
		result, err := p.Extract(ctx, imageData, contentType)
		if err != nil {
			slog.Warn("Provider failed, trying next", "error", err)
			continue
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// Close closes every provider in the chain, returning the first error.
func (c *Chain) Close() error {
	var firstErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

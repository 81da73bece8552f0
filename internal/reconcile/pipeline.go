package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"comprova/internal/extraction"
	"comprova/internal/ledger"
)

// Extractor is the extraction provider chain. A nil result with nil
// error means total extraction failure.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte, contentType string) (*extraction.Result, error)
}

// Matcher finds and claims a ledger row for extracted receipt data.
type Matcher interface {
	Match(prices []float64, date, rawText string) (*ledger.MatchResult, error)
}

// Pipeline reconciles inbound receipt images one at a time. It owns no
// goroutines: the ledger claim is a read-then-write against shared
// state, so callers must keep a single-writer discipline.
type Pipeline struct {
	extractor Extractor
	matcher   Matcher
	processed ProcessedStore
	archive   Archive
	audit     AuditLog
}

// NewPipeline wires the pipeline's collaborators together.
func NewPipeline(extractor Extractor, matcher Matcher, processed ProcessedStore, archive Archive, audit AuditLog) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		matcher:   matcher,
		processed: processed,
		archive:   archive,
		audit:     audit,
	}
}

// Process runs one message through extraction and matching, records
// the outcome and marks the message processed. A message that was
// already processed returns (nil, nil) without touching the providers.
//
// Marking happens on every outcome, including OCR failure: quota is
// never spent twice on the same image, and failed images sit in the
// failures lane for manual review.
func (p *Pipeline) Process(ctx context.Context, img ReceiptImage) (*Outcome, error) {
	if p.processed.IsProcessed(img.MessageID) {
		return nil, nil
	}

	pendingPath, err := p.archive.SavePending(p.archiveName(img), img.Data)
	if err != nil {
		// The archive is a side channel; reconciliation still runs.
		slog.Warn("Failed to archive image", "message_id", img.MessageID, "error", err)
		pendingPath = ""
	}

	result, err := p.extractor.Extract(ctx, img.Data, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	outcome := p.reconcile(img, result)

	imagePath := p.settleArchive(pendingPath, outcome, result)

	entry := AuditEntry{
		MessageID: img.MessageID,
		Sender:    img.Sender,
		Kind:      outcome.Kind,
		Detail:    outcome.Reason,
		ImagePath: imagePath,
	}
	if result != nil {
		entry.Prices = result.Prices
		entry.Date = firstDate(result)
		entry.Provenance = result.Provenance
	}
	if err := p.audit.Record(entry); err != nil {
		slog.Warn("Failed to record audit entry", "message_id", img.MessageID, "error", err)
	}

	// Last step: the idempotency mark must never precede the outcome
	// record, or a crash in between loses the audit entry for good.
	if err := p.processed.MarkProcessed(img.MessageID); err != nil {
		return outcome, fmt.Errorf("marking message processed: %w", err)
	}

	slog.Info("Message reconciled",
		"message_id", img.MessageID,
		"outcome", outcome.Kind,
		"detail", outcome.Reason,
	)
	return outcome, nil
}

// reconcile turns an extraction result into an outcome, claiming a
// ledger row when one matches.
func (p *Pipeline) reconcile(img ReceiptImage, result *extraction.Result) *Outcome {
	outcome := &Outcome{MessageID: img.MessageID}
	if result != nil {
		outcome.Provenance = result.Provenance
	}

	if result == nil {
		outcome.Kind = OutcomeOCRFail
		outcome.Reason = "extraction produced no result"
		return outcome
	}
	if len(result.Prices) == 0 {
		outcome.Kind = OutcomeOCRFail
		outcome.Reason = "no price found"
		return outcome
	}

	match, err := p.matcher.Match(result.Prices, firstDate(result), result.RawText)
	if err != nil {
		outcome.Kind = OutcomeError
		outcome.Reason = err.Error()
		return outcome
	}

	switch {
	case match.Kind == ledger.KindMatch:
		outcome.Kind = OutcomeMatch
		amount := match.MatchedAmount
		outcome.MatchedAmount = &amount
		row := match.Row
		outcome.Row = &row
		outcome.Reason = fmt.Sprintf("row %d in %q verified", row.Row, row.Section)
	case match.SawVerified:
		// Every matching row was claimed before: this receipt
		// duplicates one that already reconciled.
		outcome.Kind = OutcomeAlreadyVerified
		outcome.Reason = "matching rows were already verified"
	default:
		outcome.Kind = OutcomeMismatch
		outcome.Reason = "no matching pending row found"
	}
	return outcome
}

// settleArchive moves the pending image into its outcome lane and, on
// failure lanes, drops a sidecar note with the extracted data so the
// review pass has something to work from.
func (p *Pipeline) settleArchive(pendingPath string, outcome *Outcome, result *extraction.Result) string {
	if pendingPath == "" {
		return ""
	}

	lane := LaneFailures
	if outcome.Kind == OutcomeMatch || outcome.Kind == OutcomeAlreadyVerified {
		lane = LaneSuccess
	}

	path, err := p.archive.Move(pendingPath, lane)
	if err != nil {
		slog.Warn("Failed to move archived image", "path", pendingPath, "error", err)
		return pendingPath
	}

	if lane == LaneFailures {
		if err := p.archive.WriteSidecar(path, sidecarNote(outcome, result)); err != nil {
			slog.Warn("Failed to write sidecar note", "path", path, "error", err)
		}
	}
	return path
}

// Backfill processes a batch of historical messages in chronological
// order, skipping the ones already handled. Context cancellation stops
// between messages; in-flight provider calls are not interrupted.
func (p *Pipeline) Backfill(ctx context.Context, imgs []ReceiptImage) ([]*Outcome, error) {
	sort.SliceStable(imgs, func(i, j int) bool {
		return imgs[i].Timestamp.Before(imgs[j].Timestamp)
	})

	outcomes := make([]*Outcome, 0, len(imgs))
	for _, img := range imgs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if p.processed.IsProcessed(img.MessageID) {
			slog.Info("Skipping processed message", "message_id", img.MessageID)
			continue
		}
		outcome, err := p.Process(ctx, img)
		if err != nil {
			return outcomes, err
		}
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, nil
}

// archiveName builds the archive filename from capture date, sender
// and message id.
func (p *Pipeline) archiveName(img ReceiptImage) string {
	ext := extensionFor(img.ContentType)
	date := img.Timestamp.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s_%s_%s%s", date, img.Sender, img.MessageID, ext)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "image/heic", "image/heif":
		return ".heic"
	default:
		return ".jpg"
	}
}

func firstDate(result *extraction.Result) string {
	if result == nil || len(result.Dates) == 0 {
		return ""
	}
	return result.Dates[0]
}

// sidecarNote summarizes the extraction for the manual review pass.
func sidecarNote(outcome *Outcome, result *extraction.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", outcome.Kind)
	if outcome.Reason != "" {
		fmt.Fprintf(&b, "Detail: %s\n", outcome.Reason)
	}
	if result == nil {
		b.WriteString("Raw:\nOCR failed\n")
		return b.String()
	}
	prices := make([]string, 0, len(result.Prices))
	for _, p := range result.Prices {
		prices = append(prices, fmt.Sprintf("%.2f", p))
	}
	fmt.Fprintf(&b, "Prices: %s\n", strings.Join(prices, ", "))
	fmt.Fprintf(&b, "Date: %s\n", firstDate(result))
	fmt.Fprintf(&b, "Raw:\n%s\n", result.RawText)
	return b.String()
}

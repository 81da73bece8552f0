package reconcile

import (
	"time"

	"comprova/internal/ledger"
)

// ReceiptImage is one inbound message from the transport: the media
// bytes plus enough identity to archive and deduplicate it. Immutable
// once received.
type ReceiptImage struct {
	Data        []byte
	ContentType string
	Sender      string
	Timestamp   time.Time
	MessageID   string
}

// OutcomeKind tags the result of processing one message.
type OutcomeKind string

const (
	// OutcomeMatch means a pending ledger row was claimed.
	OutcomeMatch OutcomeKind = "MATCH"
	// OutcomeAlreadyVerified means the only rows matching the receipt
	// were claimed before; the receipt duplicates a reconciled one.
	OutcomeAlreadyVerified OutcomeKind = "ALREADY_VERIFIED"
	// OutcomeMismatch means extraction worked but no pending row
	// matched. A normal business outcome, handled by manual review.
	OutcomeMismatch OutcomeKind = "MISMATCH"
	// OutcomeError means a system fault: section resolution or ledger
	// access failed. Needs an operator.
	OutcomeError OutcomeKind = "ERROR"
	// OutcomeOCRFail means both extraction phases produced nothing
	// usable. Routed to manual review, never retried automatically.
	OutcomeOCRFail OutcomeKind = "OCR_FAIL"
)

// Outcome is the record the pipeline produces exactly once per
// message; the reporting side consumes these.
type Outcome struct {
	MessageID     string         `json:"message_id"`
	Kind          OutcomeKind    `json:"outcome"`
	MatchedAmount *float64       `json:"matched_amount,omitempty"`
	Row           *ledger.RowRef `json:"row,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Provenance    string         `json:"provenance,omitempty"`
}

package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one line of the audit trail. Together with the archive
// it reconstructs what happened to every message.
type AuditEntry struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	MessageID  string      `json:"message_id"`
	Sender     string      `json:"sender"`
	Prices     []float64   `json:"prices,omitempty"`
	Date       string      `json:"date,omitempty"`
	Kind       OutcomeKind `json:"status"`
	Detail     string      `json:"detail,omitempty"`
	ImagePath  string      `json:"image_path,omitempty"`
	Provenance string      `json:"provenance,omitempty"`
}

// AuditLog records one entry per processed message.
type AuditLog interface {
	Record(entry AuditEntry) error
}

// JSONLAuditLog appends entries to a JSON-lines file. Append-only, so
// a crash mid-write corrupts at most the final line.
type JSONLAuditLog struct {
	path string
}

// NewJSONLAuditLog creates an audit log writing to path.
func NewJSONLAuditLog(path string) *JSONLAuditLog {
	return &JSONLAuditLog{path: path}
}

// Record stamps the entry with an id and time and appends it.
func (l *JSONLAuditLog) Record(entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

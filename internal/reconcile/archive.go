package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Archive lanes. Images start in pending and move once the outcome is
// known; failures is what the manual review pass walks.
const (
	LanePending  = "pending"
	LaneSuccess  = "success"
	LaneFailures = "failures"
)

// Archive persists receipt images alongside the reconciliation, laned
// by outcome.
type Archive interface {
	// SavePending writes a new image into the pending lane and returns
	// its path relative to the archive root.
	SavePending(filename string, data []byte) (string, error)

	// Move relocates an archived image into another lane, returning
	// the new relative path.
	Move(path, lane string) (string, error)

	// WriteSidecar writes a note next to an archived image, replacing
	// its extension with .txt.
	WriteSidecar(path, content string) error

	// ListFailures returns the relative paths of images in the
	// failures lane.
	ListFailures() ([]string, error)

	// FullPath resolves a relative archive path to an absolute one.
	FullPath(path string) string
}

// LocalArchive implements Archive on the local filesystem.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the archive directory tree.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	for _, lane := range []string{LanePending, LaneSuccess, LaneFailures} {
		if err := os.MkdirAll(filepath.Join(basePath, lane), 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}
	return &LocalArchive{basePath: basePath}, nil
}

// SavePending writes the image into the pending lane.
func (a *LocalArchive) SavePending(filename string, data []byte) (string, error) {
	rel := filepath.Join(LanePending, SanitizeFilename(filename))
	if err := os.WriteFile(filepath.Join(a.basePath, rel), data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return rel, nil
}

// Move renames the image into the target lane.
func (a *LocalArchive) Move(path, lane string) (string, error) {
	rel := filepath.Join(lane, filepath.Base(path))
	if err := os.Rename(filepath.Join(a.basePath, path), filepath.Join(a.basePath, rel)); err != nil {
		return "", fmt.Errorf("moving image: %w", err)
	}
	return rel, nil
}

// WriteSidecar writes a metadata note next to the image.
func (a *LocalArchive) WriteSidecar(path, content string) error {
	ext := filepath.Ext(path)
	notePath := strings.TrimSuffix(path, ext) + ".txt"
	if err := os.WriteFile(filepath.Join(a.basePath, notePath), []byte(content), 0644); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

// ListFailures returns the failed images, sidecar notes excluded.
func (a *LocalArchive) ListFailures() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.basePath, LaneFailures))
	if err != nil {
		return nil, fmt.Errorf("reading failures lane: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		paths = append(paths, filepath.Join(LaneFailures, e.Name()))
	}
	return paths, nil
}

// FullPath resolves a relative archive path.
func (a *LocalArchive) FullPath(path string) string {
	return filepath.Join(a.basePath, path)
}

var (
	specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips special characters out of transport-supplied
// filenames (sender ids contain "@" and ":") and caps the length.
func SanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = specialChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	const maxLen = 80
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

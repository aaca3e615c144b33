// Package backup exports and imports a user's task collection as YAML.
package backup

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// FormatVersion is the document version written by Export.
const FormatVersion = 1

// ErrUnsupportedVersion is returned for documents from a newer format.
var ErrUnsupportedVersion = errors.New("unsupported backup version")

// Document is the on-disk backup format.
type Document struct {
	Version    int          `yaml:"version"`
	User       string       `yaml:"user"`
	ExportedAt time.Time    `yaml:"exported_at"`
	Tasks      []model.Task `yaml:"tasks"`
}

// Export writes the collection to w.
func Export(w io.Writer, userID string, tasks []model.Task, now time.Time) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	doc := Document{
		Version:    FormatVersion,
		User:       userID,
		ExportedAt: now,
		Tasks:      tasks,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}
	return enc.Close()
}

// Import reads a document from r. Tasks are returned as written; callers
// normalize and validate them on save.
func Import(r io.Reader) (Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decoding backup: %w", err)
	}
	if doc.Version == 0 || doc.Version > FormatVersion {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc, nil
}

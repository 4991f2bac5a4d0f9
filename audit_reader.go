package accounts

import (
	"context"
	"iter"
	"slices"
	"strings"
)

// TrailFilter narrows a trail read. Empty fields match everything.
type TrailFilter struct {
	Actions    []string
	Categories []Category
	Severities []Severity
	UserID     string
}

func (f TrailFilter) matches(entry AuditEntry) bool {
	if len(f.Actions) > 0 && !slices.ContainsFunc(f.Actions, func(action string) bool {
		return strings.EqualFold(action, entry.Action)
	}) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, entry.Category) {
		return false
	}
	if len(f.Severities) > 0 && !slices.Contains(f.Severities, entry.Severity) {
		return false
	}
	if f.UserID != "" && f.UserID != entry.UserID {
		return false
	}
	return true
}

// TrailReader reads the audit trail.
type TrailReader struct {
	directory Directory
}

// NewTrailReader builds a reader over dir.
func NewTrailReader(dir Directory) *TrailReader {
	return &TrailReader{directory: dir}
}

// Entries loads the trail snapshot and returns a lazy, insertion ordered
// sequence over the entries that match filter.
func (r *TrailReader) Entries(ctx context.Context, filter TrailFilter) (iter.Seq[AuditEntry], error) {
	entries, err := r.directory.Entries(ctx)
	if err != nil {
		return nil, err
	}

	return func(yield func(AuditEntry) bool) {
		for _, entry := range entries {
			if !filter.matches(entry) {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}, nil
}

// All is Entries without a filter.
func (r *TrailReader) All(ctx context.Context) (iter.Seq[AuditEntry], error) {
	return r.Entries(ctx, TrailFilter{})
}

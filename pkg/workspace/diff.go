package workspace

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FieldChange describes one edited field on a record, with a unified-style
// inline diff for the review surface.
type FieldChange struct {
	Field    string `json:"field"`
	Old      string `json:"old"`
	New      string `json:"new"`
	DiffText string `json:"diff_text"`
}

// PendingChanges returns the fields of a record whose working value differs
// from last-known-remote, in column order followed by any remaining fields.
func (s *Store) PendingChanges(id string) ([]FieldChange, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	working := s.records[i].Clone()
	remote, hasRemote := s.lastRemote[id]
	if hasRemote {
		remote = remote.Clone()
	}
	columns := append([]string(nil), s.columns...)
	s.mu.Unlock()

	if !hasRemote {
		return nil, nil
	}

	dmp := diffmatchpatch.New()
	seen := map[string]bool{}
	var out []FieldChange

	appendChange := func(field string) {
		if seen[field] {
			return
		}
		seen[field] = true
		oldVal := remote.Get(field)
		newVal := working.Get(field)
		if oldVal == newVal {
			return
		}
		diffs := dmp.DiffMain(oldVal, newVal, false)
		dmp.DiffCleanupSemantic(diffs)
		out = append(out, FieldChange{
			Field:    field,
			Old:      oldVal,
			New:      newVal,
			DiffText: dmp.DiffPrettyText(diffs),
		})
	}

	for _, f := range columns {
		appendChange(f)
	}
	for f := range working.Fields {
		appendChange(f)
	}
	for f := range working.Extra {
		appendChange(f)
	}
	return out, nil
}

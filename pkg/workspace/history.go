package workspace

import "github.com/6000yuval/shopify-seo/pkg/catalog"

// Linear undo/redo over deep copies of the whole working-copy list.
//
// Commit is taken immediately before a batch mutation begins, so undo always
// restores the pre-mutation state. Undo and redo swap only the working copy;
// baseline, last-known-remote, sync statuses and selection are deliberately
// left alone, which means a status can be stale relative to restored content
// until the next edit or sync recomputes it.

// Commit deep-copies the current working copy onto the past stack and clears
// the future stack. Every batch mutation (AI run, revert) calls this first.
func (s *Store) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

func (s *Store) commitLocked() {
	s.past = append(s.past, catalog.CloneList(s.records))
	s.future = nil
}

// Undo restores the most recent past snapshot. No-op when there is none.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.past) == 0 {
		return false
	}
	current := s.records
	s.records = s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.future = append([][]catalog.Record{current}, s.future...)
	s.reindexLocked()
	return true
}

// Redo restores the most recently undone snapshot. No-op when there is none.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.future) == 0 {
		return false
	}
	current := s.records
	s.records = s.future[0]
	s.future = s.future[1:]
	s.past = append(s.past, current)
	s.reindexLocked()
	return true
}

// CanUndo reports whether an undo step is available.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.past) > 0
}

// CanRedo reports whether a redo step is available.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.future) > 0
}

// reindexLocked rebuilds the id index after the working copy was swapped and
// drops selected ids that no longer exist.
func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
	s.pruneSelectionLocked()
}

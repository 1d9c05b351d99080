package workspace

import (
	"errors"
	"fmt"
	"sync"

	"github.com/6000yuval/shopify-seo/pkg/catalog"
)

// SyncStatus tracks where a record stands relative to the remote store.
// A record with no status entry is clean: nothing to push.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusError   SyncStatus = "error"
)

var (
	ErrUnknownRecord = errors.New("unknown record id")
	ErrBatchRunning  = errors.New("a batch is already running")
)

// Store owns the working set. It keeps three snapshots per record identity:
// the immutable baseline captured at load, the last value known to match the
// remote store, and the live working copy. All mutation entry points funnel
// through the store and are serialized by a single mutex.
type Store struct {
	mu sync.Mutex

	records    []catalog.Record            // working copy, display order
	index      map[string]int              // id -> position in records
	baseline   map[string]catalog.Record   // never mutated after Load
	lastRemote map[string]catalog.Record   // updated only on confirmed push
	selection  map[string]bool
	columns    []string
	modes      map[string]catalog.FieldMode
	status     map[string]SyncStatus
	syncErrs   map[string]string

	past   [][]catalog.Record
	future [][]catalog.Record

	processing    bool
	progressDone  int
	progressTotal int
}

// NewStore returns an empty workspace.
func NewStore() *Store {
	return &Store{
		index:      map[string]int{},
		baseline:   map[string]catalog.Record{},
		lastRemote: map[string]catalog.Record{},
		selection:  map[string]bool{},
		modes:      map[string]catalog.FieldMode{},
		status:     map[string]SyncStatus{},
		syncErrs:   map[string]string{},
	}
}

// Load replaces the entire workspace with fresh copies of records: working
// copy, baseline and last-known-remote all start identical. History,
// selection and sync statuses are cleared. Column selection and per-field
// modes are derived from the field names present in the loaded records.
func (s *Store) Load(records []catalog.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = catalog.CloneList(records)
	s.index = make(map[string]int, len(s.records))
	s.baseline = make(map[string]catalog.Record, len(s.records))
	s.lastRemote = make(map[string]catalog.Record, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
		s.baseline[r.ID] = r.Clone()
		s.lastRemote[r.ID] = r.Clone()
	}

	s.selection = map[string]bool{}
	s.status = map[string]SyncStatus{}
	s.syncErrs = map[string]string{}
	s.past = nil
	s.future = nil

	s.columns, s.modes = deriveColumns(s.records)
}

// deriveColumns picks the default selected fields (known fields that actually
// appear in the loaded set, canonical order) and a default mode per field from
// the field-name rule table.
func deriveColumns(records []catalog.Record) ([]string, map[string]catalog.FieldMode) {
	present := map[string]bool{}
	for _, r := range records {
		for f := range r.Fields {
			present[f] = true
		}
	}
	var columns []string
	modes := map[string]catalog.FieldMode{}
	for _, f := range catalog.KnownFields {
		if !present[f] {
			continue
		}
		columns = append(columns, f)
		modes[f] = catalog.DetectFieldMode(f)
	}
	return columns, modes
}

// Records returns a deep copy of the working copy in display order.
func (s *Store) Records() []catalog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return catalog.CloneList(s.records)
}

// Record returns a deep copy of one working-copy record.
func (s *Store) Record(id string) (catalog.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return catalog.Record{}, false
	}
	return s.records[i].Clone(), true
}

// Baseline returns the load-time snapshot for id.
func (s *Store) Baseline(id string) (catalog.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.baseline[id]
	if !ok {
		return catalog.Record{}, false
	}
	return r.Clone(), true
}

// LastRemote returns the value believed to match the remote store for id.
func (s *Store) LastRemote(id string) (catalog.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRemote[id]
	if !ok {
		return catalog.Record{}, false
	}
	return r.Clone(), true
}

// ChangedSinceLoad reports whether the working copy for id differs from the
// immutable baseline. Drives the revert affordance only.
func (s *Store) ChangedSinceLoad(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	base, ok := s.baseline[id]
	if !ok {
		return false
	}
	return !s.records[i].Equal(base)
}

// SetFieldValue updates one field on one working-copy record. Snapshots and
// history are untouched; the record's dirty status is recomputed against
// last-known-remote.
func (s *Store) SetFieldValue(id, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	s.records[i].Set(field, value)
	s.recomputeDirtyLocked(id)
	return nil
}

// recomputeDirtyLocked applies the dirty rule: status is pending iff the
// working copy differs from last-known-remote, absent otherwise.
func (s *Store) recomputeDirtyLocked(id string) {
	i, ok := s.index[id]
	if !ok {
		delete(s.status, id)
		delete(s.syncErrs, id)
		return
	}
	remote, ok := s.lastRemote[id]
	if ok && s.records[i].Equal(remote) {
		delete(s.status, id)
		delete(s.syncErrs, id)
		return
	}
	s.status[id] = StatusPending
	delete(s.syncErrs, id)
}

// Revert copies the immutable baseline back into the working copy for one
// record, after taking a history checkpoint. Dirty status is recomputed
// against last-known-remote, so reverting a never-synced edit clears it.
func (s *Store) Revert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	base, ok := s.baseline[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	s.commitLocked()
	s.records[i] = base.Clone()
	s.recomputeDirtyLocked(id)
	return nil
}

// Select adds record ids to the selection set. Unknown ids are ignored.
func (s *Store) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			s.selection[id] = true
		}
	}
}

// Deselect removes record ids from the selection set.
func (s *Store) Deselect(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.selection, id)
	}
}

// SetSelection replaces the selection set.
func (s *Store) SetSelection(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = map[string]bool{}
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			s.selection[id] = true
		}
	}
}

// Selection returns the selected ids in working-copy display order. This is
// the iteration order the transformation pipeline uses.
func (s *Store) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionLocked()
}

func (s *Store) selectionLocked() []string {
	var out []string
	for _, r := range s.records {
		if s.selection[r.ID] {
			out = append(out, r.ID)
		}
	}
	return out
}

// pruneSelectionLocked drops selected ids that no longer exist in the working
// copy. Called after every history transition, since selection is not part of
// the snapshotted state.
func (s *Store) pruneSelectionLocked() {
	for id := range s.selection {
		if _, ok := s.index[id]; !ok {
			delete(s.selection, id)
		}
	}
}

// SetColumns replaces the ordered list of selected field names.
func (s *Store) SetColumns(fields []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = append([]string(nil), fields...)
}

// Columns returns the ordered selected field names.
func (s *Store) Columns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.columns...)
}

// SetFieldMode overrides the optimization mode for a field.
func (s *Store) SetFieldMode(field string, mode catalog.FieldMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[field] = mode
}

// FieldMode returns the configured mode for a field, defaulting to FACTUAL.
func (s *Store) FieldMode(field string) catalog.FieldMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modes[field]; ok {
		return m
	}
	return catalog.ModeFactual
}

// Status returns the sync status for id; empty string means absent.
func (s *Store) Status(id string) SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[id]
}

// SyncError returns the last push error message for id, if any.
func (s *Store) SyncError(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncErrs[id]
}

// Statuses returns a copy of the full status map.
func (s *Store) Statuses() map[string]SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]SyncStatus, len(s.status))
	for id, st := range s.status {
		out[id] = st
	}
	return out
}

// PendingIDs returns the ids currently pending, in display order.
func (s *Store) PendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.records {
		if s.status[r.ID] == StatusPending {
			out = append(out, r.ID)
		}
	}
	return out
}

// MarkSyncing flips a record into the syncing state.
func (s *Store) MarkSyncing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return
	}
	s.status[id] = StatusSyncing
	delete(s.syncErrs, id)
}

// MarkSynced records a confirmed push: the just-pushed working copy becomes
// the new last-known-remote and the status becomes synced.
func (s *Store) MarkSynced(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.lastRemote[id] = s.records[i].Clone()
	s.status[id] = StatusSynced
	delete(s.syncErrs, id)
}

// MarkSyncError records a failed push for one record.
func (s *Store) MarkSyncError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return
	}
	s.status[id] = StatusError
	if err != nil {
		s.syncErrs[id] = err.Error()
	}
}

// BeginBatch claims the single batch slot. Callers must release it with
// EndBatch. Returns ErrBatchRunning if a batch is already in flight.
func (s *Store) BeginBatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return ErrBatchRunning
	}
	s.processing = true
	s.progressDone = 0
	s.progressTotal = 0
	return nil
}

// EndBatch releases the batch slot and stops the processing indicator.
func (s *Store) EndBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
}

// SetProgress publishes batch progress. The pipeline advances done in
// whole-record increments.
func (s *Store) SetProgress(done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressDone = done
	s.progressTotal = total
}

// Progress reports batch progress and whether a batch is running.
func (s *Store) Progress() (done, total int, processing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressDone, s.progressTotal, s.processing
}

// IsProcessing reports whether a batch is currently running.
func (s *Store) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

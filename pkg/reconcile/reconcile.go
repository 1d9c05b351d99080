package reconcile

import (
	"context"
	"fmt"

	"github.com/6000yuval/shopify-seo/pkg/catalog"
	"github.com/6000yuval/shopify-seo/pkg/workspace"
)

// Pusher is the slice of the remote catalog gateway the reconciler needs.
type Pusher interface {
	PushProduct(ctx context.Context, id string, rec catalog.Record) error
}

// Logger abstracts logging, matching the pipeline package's interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// RecordError attributes a push failure to one record.
type RecordError struct {
	ID  string
	Err error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %s: %v", e.ID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Summary reports the outcome of a sync pass.
type Summary struct {
	Synced []string
	Failed []RecordError
}

// Reconciler pushes dirty records to the remote store one at a time and
// tracks per-record outcome through the workspace status map. Pushes are
// strictly sequential: grouped sub-resource mutations on the remote side must
// not race each other.
type Reconciler struct {
	store   *workspace.Store
	gateway Pusher
	log     Logger
}

// New builds a Reconciler. log may be nil.
func New(store *workspace.Store, gateway Pusher, log Logger) *Reconciler {
	if log == nil {
		log = nopLogger{}
	}
	return &Reconciler{store: store, gateway: gateway, log: log}
}

// SyncAll pushes every pending record. A failed record is marked error and
// reported in the summary; it never blocks the rest of the work list. No
// error escapes: per-record outcomes are the contract.
func (r *Reconciler) SyncAll(ctx context.Context) Summary {
	var sum Summary
	ids := r.store.PendingIDs()
	r.log.Infof("syncing %d pending records", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			// Remaining records stay pending and are picked up next pass.
			r.log.Warnf("sync stopped early: %v", err)
			return sum
		}
		if err := r.pushOne(ctx, id); err != nil {
			sum.Failed = append(sum.Failed, RecordError{ID: id, Err: err})
			continue
		}
		sum.Synced = append(sum.Synced, id)
	}
	return sum
}

// SyncOne pushes a single record regardless of its current status. This is
// also the explicit retry path for a record stuck in the error state.
func (r *Reconciler) SyncOne(ctx context.Context, id string) error {
	if _, ok := r.store.Record(id); !ok {
		return fmt.Errorf("%w: %s", workspace.ErrUnknownRecord, id)
	}
	return r.pushOne(ctx, id)
}

// pushOne drives the per-record state machine: pending -> syncing ->
// synced or error. On success the pushed working copy becomes the new
// last-known-remote so future dirty comparisons are correct.
func (r *Reconciler) pushOne(ctx context.Context, id string) error {
	rec, ok := r.store.Record(id)
	if !ok {
		return fmt.Errorf("%w: %s", workspace.ErrUnknownRecord, id)
	}

	r.store.MarkSyncing(id)
	if err := r.gateway.PushProduct(ctx, id, rec); err != nil {
		r.store.MarkSyncError(id, err)
		r.log.Errorf("push failed for %s: %v", id, err)
		return err
	}
	r.store.MarkSynced(id)
	r.log.Debugf("pushed %s", id)
	return nil
}

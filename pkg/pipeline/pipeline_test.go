package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/6000yuval/shopify-seo/pkg/ai"
	"github.com/6000yuval/shopify-seo/pkg/catalog"
	"github.com/6000yuval/shopify-seo/pkg/workspace"
)

// fakeTransformer replays a scripted outcome per call.
type fakeTransformer struct {
	store    *workspace.Store
	script   []func(items []ai.Item) ([]string, error)
	calls    [][]ai.Item
	progress [][2]int // store progress observed at each call
}

func (f *fakeTransformer) TransformBatch(_ context.Context, items []ai.Item) ([]string, error) {
	f.calls = append(f.calls, items)
	if f.store != nil {
		done, total, _ := f.store.Progress()
		f.progress = append(f.progress, [2]int{done, total})
	}
	if len(f.calls) > len(f.script) {
		return nil, fmt.Errorf("unexpected call %d", len(f.calls))
	}
	return f.script[len(f.calls)-1](items)
}

func (f *fakeTransformer) GenerateContentSet(context.Context, string, string, string, int) ([]ai.ContentDraft, error) {
	return nil, errors.New("not implemented")
}

func ok(values ...string) func([]ai.Item) ([]string, error) {
	return func(items []ai.Item) ([]string, error) {
		if len(values) != len(items) {
			return nil, fmt.Errorf("script expected %d items, got %d", len(values), len(items))
		}
		return values, nil
	}
}

func fail(err error) func([]ai.Item) ([]string, error) {
	return func([]ai.Item) ([]string, error) { return nil, err }
}

func mkRecord(id, title string) catalog.Record {
	r := catalog.NewRecord(id)
	r.Set(catalog.FieldTitle, title)
	return r
}

func newStore(t *testing.T) *workspace.Store {
	t.Helper()
	s := workspace.NewStore()
	s.Load([]catalog.Record{mkRecord("a", "X"), mkRecord("b", "Y")})
	s.SetSelection([]string{"a", "b"})
	s.SetColumns([]string{catalog.FieldTitle})
	s.SetFieldMode(catalog.FieldTitle, catalog.ModeFactual)
	return s
}

func newRunner(store *workspace.Store, tr ai.Transformer) *Runner {
	r := NewRunner(Config{Store: store, Transformer: tr})
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestRunRewritesSelection(t *testing.T) {
	store := newStore(t)
	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){
		ok("X2"),
		ok("Y2"),
	}}

	res, err := newRunner(store, tr).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordsDone != 2 || res.FieldsDone != 2 || res.FieldsTotal != 2 {
		t.Fatalf("result = %+v", res)
	}

	recA, _ := store.Record("a")
	recB, _ := store.Record("b")
	if recA.Get(catalog.FieldTitle) != "X2" || recB.Get(catalog.FieldTitle) != "Y2" {
		t.Fatalf("working copy = %q, %q", recA.Get(catalog.FieldTitle), recB.Get(catalog.FieldTitle))
	}
	if store.Status("a") != workspace.StatusPending || store.Status("b") != workspace.StatusPending {
		t.Fatal("rewritten records must be pending")
	}

	// One call per record, not per field.
	if len(tr.calls) != 2 {
		t.Fatalf("gateway calls = %d, want 2", len(tr.calls))
	}

	// Exactly one history entry, equal to the pre-batch list.
	if !store.Undo() {
		t.Fatal("expected one history entry")
	}
	recA, _ = store.Record("a")
	recB, _ = store.Record("b")
	if recA.Get(catalog.FieldTitle) != "X" || recB.Get(catalog.FieldTitle) != "Y" {
		t.Fatal("undo did not restore the pre-batch state")
	}
	if store.CanUndo() {
		t.Fatal("batch must push exactly one history entry")
	}
	if store.IsProcessing() {
		t.Fatal("processing flag must be cleared")
	}
}

func TestRunAbortsOnPermanentErrorKeepingPartialProgress(t *testing.T) {
	store := newStore(t)
	permanent := errors.New("bad request")
	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){
		ok("X2"),
		fail(fmt.Errorf("%w: slow down", ai.ErrRateLimited)), // one transient attempt
		fail(permanent), // retry hits a permanent error
	}}

	_, err := newRunner(store, tr).Run(context.Background())
	if err == nil || !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want wrapped permanent error", err)
	}

	recA, _ := store.Record("a")
	recB, _ := store.Record("b")
	if recA.Get(catalog.FieldTitle) != "X2" {
		t.Fatal("record rewritten before the abort must keep its new value")
	}
	if recB.Get(catalog.FieldTitle) != "Y" {
		t.Fatal("aborted record must be unchanged")
	}
	if store.Status("a") != workspace.StatusPending {
		t.Fatal("partially completed work stays pending and syncable")
	}
	if store.Status("b") != "" {
		t.Fatalf("unchanged record has status %q", store.Status("b"))
	}
	if store.IsProcessing() {
		t.Fatal("processing flag must be cleared after an abort")
	}
}

func TestRetryBackoffOnTransientErrors(t *testing.T) {
	store := workspace.NewStore()
	store.Load([]catalog.Record{mkRecord("a", "X")})
	store.SetSelection([]string{"a"})
	store.SetColumns([]string{catalog.FieldTitle})
	store.SetFieldMode(catalog.FieldTitle, catalog.ModeFactual)

	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){
		fail(fmt.Errorf("%w", ai.ErrRateLimited)),
		fail(fmt.Errorf("%w", ai.ErrUnavailable)),
		ok("X2"),
	}}

	r := NewRunner(Config{Store: store, Transformer: tr, RetryBaseDelay: time.Second})
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tr.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(tr.calls))
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("backoff delays = %v, want %v", delays, want)
	}
}

func TestRetryExhaustionFailsBatch(t *testing.T) {
	store := workspace.NewStore()
	store.Load([]catalog.Record{mkRecord("a", "X")})
	store.SetSelection([]string{"a"})
	store.SetColumns([]string{catalog.FieldTitle})

	transient := fail(fmt.Errorf("%w", ai.ErrRateLimited))
	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){transient, transient, transient}}

	_, err := newRunner(store, tr).Run(context.Background())
	if err == nil || !errors.Is(err, ai.ErrRateLimited) {
		t.Fatalf("err = %v, want rate-limit error after exhaustion", err)
	}
	if len(tr.calls) != 3 {
		t.Fatalf("calls = %d, want exactly 3 attempts", len(tr.calls))
	}
}

func TestEmptyFieldsAreSkippedInTotals(t *testing.T) {
	store := workspace.NewStore()
	// Record b has an empty title: FACTUAL has nothing to rewrite.
	store.Load([]catalog.Record{mkRecord("a", "X"), mkRecord("b", "")})
	store.SetSelection([]string{"a", "b"})
	store.SetColumns([]string{catalog.FieldTitle})
	store.SetFieldMode(catalog.FieldTitle, catalog.ModeFactual)

	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){ok("X2")}}

	res, err := newRunner(store, tr).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.FieldsTotal != 1 || res.RecordsDone != 1 {
		t.Fatalf("result = %+v, want total 1 over 1 record", res)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("calls = %d, want 1: empty records are skipped entirely", len(tr.calls))
	}
}

// Progress advances in whole-record increments: the second call observes all
// of the first record's fields already completed.
func TestProgressAdvancesPerRecord(t *testing.T) {
	store := workspace.NewStore()
	a := mkRecord("a", "X")
	a.Set(catalog.FieldSEOTitle, "old")
	b := mkRecord("b", "Y")
	b.Set(catalog.FieldSEOTitle, "old")
	store.Load([]catalog.Record{a, b})
	store.SetSelection([]string{"a", "b"})
	store.SetColumns([]string{catalog.FieldTitle, catalog.FieldSEOTitle})
	store.SetFieldMode(catalog.FieldTitle, catalog.ModeFactual)
	store.SetFieldMode(catalog.FieldSEOTitle, catalog.ModeSEOTitle)

	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){
		ok("X2", "seo X2"),
		ok("Y2", "seo Y2"),
	}}

	if _, err := newRunner(store, tr).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := [][2]int{{0, 4}, {2, 4}}
	if !reflect.DeepEqual(tr.progress, want) {
		t.Fatalf("observed progress = %v, want %v", tr.progress, want)
	}
	done, total, _ := store.Progress()
	if done != 4 || total != 4 {
		t.Fatalf("final progress = %d/%d", done, total)
	}
}

func TestSingleFlight(t *testing.T) {
	store := newStore(t)
	if err := store.BeginBatch(); err != nil {
		t.Fatal(err)
	}
	defer store.EndBatch()

	tr := &fakeTransformer{store: store}
	_, err := newRunner(store, tr).Run(context.Background())
	if !errors.Is(err, workspace.ErrBatchRunning) {
		t.Fatalf("err = %v, want ErrBatchRunning", err)
	}
}

func TestCancellationBetweenRecords(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	tr := &fakeTransformer{store: store, script: []func([]ai.Item) ([]string, error){
		func(items []ai.Item) ([]string, error) {
			cancel() // cancel while the first record is in flight
			return []string{"X2"}, nil
		},
		ok("Y2"),
	}}

	r := NewRunner(Config{Store: store, Transformer: tr})
	r.sleep = sleepCtx // real sleep honors the cancelled context

	_, err := r.Run(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The in-flight record was fully written; the next one never started.
	recA, _ := store.Record("a")
	recB, _ := store.Record("b")
	if recA.Get(catalog.FieldTitle) != "X2" {
		t.Fatal("in-flight record must not be left half rewritten")
	}
	if recB.Get(catalog.FieldTitle) != "Y" {
		t.Fatal("records after the cancellation point must be untouched")
	}
	if len(tr.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(tr.calls))
	}
}

func TestNothingSelected(t *testing.T) {
	store := workspace.NewStore()
	store.Load([]catalog.Record{mkRecord("a", "X")})
	store.SetColumns([]string{catalog.FieldTitle})

	tr := &fakeTransformer{store: store}
	if _, err := newRunner(store, tr).Run(context.Background()); err == nil {
		t.Fatal("expected an error with nothing selected")
	}
	if store.IsProcessing() {
		t.Fatal("processing flag must be cleared")
	}
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/6000yuval/shopify-seo/pkg/ai"
	"github.com/6000yuval/shopify-seo/pkg/catalog"
	"github.com/6000yuval/shopify-seo/pkg/workspace"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
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

const (
	defaultMaxAttempts      = 3
	defaultRetryBaseDelay   = time.Second
	defaultInterRecordDelay = 500 * time.Millisecond
)

// Config holds everything a Runner needs.
type Config struct {
	Store       *workspace.Store
	Transformer ai.Transformer
	Log         Logger // optional; nil = no logging

	// MaxAttempts per gateway call; defaults to 3.
	MaxAttempts int
	// RetryBaseDelay is the backoff base; attempt n waits base * 2^n.
	RetryBaseDelay time.Duration
	// InterRecordDelay is the fixed pause between records, a rate-limit
	// guard against provider throttling.
	InterRecordDelay time.Duration
}

// Runner drives one batch transformation over the current selection: for each
// selected record, all selected fields are rewritten in a single gateway call,
// written back to the working copy and marked pending.
type Runner struct {
	store            *workspace.Store
	transformer      ai.Transformer
	log              Logger
	maxAttempts      int
	retryBaseDelay   time.Duration
	interRecordDelay time.Duration

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner builds a Runner from cfg, applying defaults.
func NewRunner(cfg Config) *Runner {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultRetryBaseDelay
	}
	interRecord := cfg.InterRecordDelay
	if interRecord <= 0 {
		interRecord = defaultInterRecordDelay
	}
	return &Runner{
		store:            cfg.Store,
		transformer:      cfg.Transformer,
		log:              log,
		maxAttempts:      maxAttempts,
		retryBaseDelay:   retryBase,
		interRecordDelay: interRecord,
		sleep:            sleepCtx,
	}
}

// recordWork is the resolved plan for one record: which fields get rewritten
// and the instructions already built for them.
type recordWork struct {
	id     string
	fields []string
	items  []ai.Item
}

// Result summarizes a completed batch.
type Result struct {
	RecordsDone int
	FieldsDone  int
	FieldsTotal int
}

// Run executes one batch over the current selection and column configuration.
// Exactly one history checkpoint is taken before the first mutation, so a
// single undo restores the full pre-batch state. Records already rewritten
// before an abort keep their new values and stay pending.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result

	if err := r.store.BeginBatch(); err != nil {
		return res, err
	}
	defer r.store.EndBatch()

	selection := r.store.Selection()
	columns := r.store.Columns()
	if len(selection) == 0 {
		return res, fmt.Errorf("no records selected")
	}
	if len(columns) == 0 {
		return res, fmt.Errorf("no fields selected")
	}

	work, total := r.plan(selection, columns)
	res.FieldsTotal = total
	if total == 0 {
		return res, fmt.Errorf("nothing to transform: all selected fields are empty")
	}

	r.store.Commit()
	r.store.SetProgress(0, total)
	r.log.Infof("starting batch: %d records, %d fields", len(work), total)

	completed := 0
	for i, w := range work {
		// Cancellation is cooperative and only honored between records,
		// never mid-record, so no record is left half rewritten.
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("batch cancelled after %d of %d records: %w", i, len(work), err)
		}

		values, err := r.callWithRetry(ctx, w)
		if err != nil {
			r.log.Errorf("batch aborted at record %s: %v", w.id, err)
			return res, fmt.Errorf("record %s: %w", w.id, err)
		}

		for j, field := range w.fields {
			if err := r.store.SetFieldValue(w.id, field, values[j]); err != nil {
				return res, fmt.Errorf("record %s: %w", w.id, err)
			}
		}

		completed += len(w.fields)
		res.RecordsDone++
		res.FieldsDone = completed
		r.store.SetProgress(completed, total)
		r.log.Debugf("record %s done (%d/%d fields)", w.id, completed, total)

		if i < len(work)-1 {
			if err := r.sleep(ctx, r.interRecordDelay); err != nil {
				return res, fmt.Errorf("batch cancelled after %d of %d records: %w", i+1, len(work), err)
			}
		}
	}

	r.log.Infof("batch complete: %d records, %d fields", res.RecordsDone, res.FieldsDone)
	return res, nil
}

// plan resolves instructions for every selected record and field up front.
// Fields whose constructed instruction is empty are skipped and do not count
// toward the progress total.
func (r *Runner) plan(selection, columns []string) ([]recordWork, int) {
	var work []recordWork
	total := 0
	for _, id := range selection {
		rec, ok := r.store.Record(id)
		if !ok {
			continue
		}
		w := recordWork{id: id}
		for _, field := range columns {
			mode := r.store.FieldMode(field)
			if mode == "" {
				mode = catalog.ModeFactual
			}
			instruction := BuildInstruction(mode, field, rec)
			if instruction == "" {
				continue
			}
			w.fields = append(w.fields, field)
			w.items = append(w.items, ai.Item{Instruction: instruction, Mode: mode})
		}
		if len(w.fields) == 0 {
			continue
		}
		total += len(w.fields)
		work = append(work, w)
	}
	return work, total
}

// callWithRetry performs the single gateway call for one record. Transient
// failures (rate limit, server-side 5xx classes) are retried up to
// maxAttempts with exponential backoff; anything else fails immediately.
func (r *Runner) callWithRetry(ctx context.Context, w recordWork) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.retryBaseDelay * (1 << attempt)
			r.log.Warnf("retrying record %s (attempt %d/%d) after %s: %v", w.id, attempt+1, r.maxAttempts, delay, lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		values, err := r.transformer.TransformBatch(ctx, w.items)
		if err == nil {
			if len(values) != len(w.items) {
				return nil, fmt.Errorf("gateway returned %d values for %d fields", len(values), len(w.items))
			}
			return values, nil
		}

		if !ai.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

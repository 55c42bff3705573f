package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

// RecordLister returns the authoritative record set.
type RecordLister interface {
	List(ctx context.Context) ([]core.Record, error)
}

// ListFunc adapts a plain function to RecordLister.
type ListFunc func(ctx context.Context) ([]core.Record, error)

// List calls f.
func (f ListFunc) List(ctx context.Context) ([]core.Record, error) {
	return f(ctx)
}

// SheetWriter replaces the mirrored copy with a full record set.
type SheetWriter interface {
	ReplaceRecords(ctx context.Context, records []core.Record) error
}

// MirrorConfig holds configuration for the mirror worker
type MirrorConfig struct {
	// Debounce is how long to wait after an event before rewriting the sheet (default: 2s)
	Debounce time.Duration

	// ResyncInterval forces a full rewrite even without events (default: 1h)
	ResyncInterval time.Duration
}

// DefaultMirrorConfig returns sensible defaults
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Debounce:       2 * time.Second,
		ResyncInterval: 1 * time.Hour,
	}
}

// MirrorWorker keeps a sheet in step with the store. Record events only mark
// the mirror dirty; the sheet is always rewritten from a fresh List, so bursts
// of events collapse into one write.
type MirrorWorker struct {
	lister RecordLister
	sheet  SheetWriter
	config MirrorConfig

	notify chan struct{}
	dirty  atomic.Bool
	syncs  atomic.Int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorWorker(lister RecordLister, sheet SheetWriter, config MirrorConfig) *MirrorWorker {
	def := DefaultMirrorConfig()
	if config.Debounce <= 0 {
		config.Debounce = def.Debounce
	}
	if config.ResyncInterval <= 0 {
		config.ResyncInterval = def.ResyncInterval
	}
	return &MirrorWorker{
		lister: lister,
		sheet:  sheet,
		config: config,
		notify: make(chan struct{}, 1),
	}
}

// HandleRecordEvent processes a single record event from AMQP.
func (w *MirrorWorker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEvent) error {
	slog.DebugContext(ctx, "Processing record event",
		"id", msg.ID,
		"op", msg.Op,
		"timestamp", msg.Timestamp)

	w.dirty.Store(true)
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

// SyncNow rewrites the sheet from the current record set.
func (w *MirrorWorker) SyncNow(ctx context.Context) error {
	w.dirty.Store(false)

	records, err := w.lister.List(ctx)
	if err != nil {
		w.dirty.Store(true)
		return fmt.Errorf("list records: %w", err)
	}
	if err := w.sheet.ReplaceRecords(ctx, records); err != nil {
		w.dirty.Store(true)
		return fmt.Errorf("replace sheet: %w", err)
	}

	w.syncs.Add(1)
	return nil
}

// Syncs returns how many full rewrites succeeded.
func (w *MirrorWorker) Syncs() int64 {
	return w.syncs.Load()
}

// Start begins the mirror loop. Returns an error if already running.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("mirror worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Mirror worker started",
		"debounce", w.config.Debounce,
		"resync_interval", w.config.ResyncInterval)
	return nil
}

// Stop gracefully stops the worker and waits for completion.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	// Only the caller that flips running closes stopCh.
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.stopCh, w.doneCh = nil, nil
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Mirror worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is currently running
func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *MirrorWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	resync := time.NewTicker(w.config.ResyncInterval)
	defer resync.Stop()

	// Nil channel until an event arms the debounce timer.
	var debounce <-chan time.Time

	w.sync(ctx, "startup")

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-w.notify:
			if debounce == nil {
				debounce = time.After(w.config.Debounce)
			}
		case <-debounce:
			debounce = nil
			if w.dirty.Load() {
				w.sync(ctx, "event")
			}
		case <-resync.C:
			w.sync(ctx, "resync")
		}
	}
}

func (w *MirrorWorker) sync(ctx context.Context, reason string) {
	start := time.Now()
	if err := w.SyncNow(ctx); err != nil {
		slog.ErrorContext(ctx, "Mirror sync failed",
			applog.FieldOperation, applog.OpSync,
			"reason", reason,
			applog.FieldError, err)
		return
	}
	slog.InfoContext(ctx, "Mirror sync completed",
		applog.FieldOperation, applog.OpSync,
		"reason", reason,
		applog.FieldDurationHuman, time.Since(start).String())
}

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stepwise/internal/logging"
	"stepwise/internal/storage"
)

const defaultPersistDebounce = 500 * time.Millisecond

// Timer is the part of *time.Timer the persister needs.
type Timer interface {
	Stop() bool
}

// Persister writes debounced snapshots of a hydrated store. Each burst of
// changes produces one write of the latest state.
type Persister struct {
	adapter   storage.Adapter
	debounce  time.Duration
	afterFunc func(time.Duration, func()) Timer
	logger    *slog.Logger

	mu          sync.Mutex
	store       *Store
	unsubscribe func()
	timer       Timer
	pending     bool
	seen        uint64
	saved       uint64

	writeMu sync.Mutex
}

// PersisterOption customizes a Persister.
type PersisterOption func(*Persister)

// WithDebounce sets the quiet period before a write.
func WithDebounce(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithAfterFunc replaces time.AfterFunc, mainly in tests.
func WithAfterFunc(fn func(time.Duration, func()) Timer) PersisterOption {
	return func(p *Persister) {
		if fn != nil {
			p.afterFunc = fn
		}
	}
}

// WithPersistLogger sets the persister logger.
func WithPersistLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

// NewPersister builds a persister for adapter. Call Start to attach it.
func NewPersister(adapter storage.Adapter, opts ...PersisterOption) *Persister {
	p := &Persister{
		adapter:  adapter,
		debounce: defaultPersistDebounce,
		afterFunc: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "persist")
	return p
}

// Start subscribes to store. Changes made before hydration are never
// written. A hydrated store with unsaved changes is scheduled at once.
func (p *Persister) Start(store *Store) {
	p.mu.Lock()
	if p.store != nil {
		p.mu.Unlock()
		return
	}
	p.store = store
	p.mu.Unlock()

	unsubscribe := store.Subscribe(p.onChange)
	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	p.onChange(store.current())
}

// Stop detaches from the store and writes any pending change.
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	return p.Flush(ctx)
}

// Flush writes any unsaved change now instead of waiting for the timer.
func (p *Persister) Flush(ctx context.Context) error {
	return p.flush(ctx)
}

// Pending reports whether a write is scheduled.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Persister) onChange(state State) {
	if !state.Hydrated {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if state.Revision == p.seen || state.Revision <= p.saved {
		return
	}
	p.seen = state.Revision
	if p.timer != nil {
		p.timer.Stop()
	}
	p.pending = true
	p.timer = p.afterFunc(p.debounce, func() {
		_ = p.flush(context.Background())
	})
}

func (p *Persister) flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	p.pending = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	store := p.store
	saved := p.saved
	p.mu.Unlock()
	if store == nil || !store.Hydrated() {
		return nil
	}

	snapshot, revision := store.snapshot()
	if revision <= saved {
		return nil
	}
	if err := p.adapter.SaveProject(ctx, snapshot); err != nil {
		logging.ErrorWithContext(p.logger, "project save failed", "persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "export a backup of your tasks"),
			logging.String(logging.FieldImpact, "recent changes are only in memory"),
		)
		store.raiseKind(KindPersist, err.Error())
		return err
	}

	p.mu.Lock()
	p.saved = revision
	p.mu.Unlock()
	p.logger.Debug("project saved", logging.Int64("revision", int64(revision)), logging.Int("tasks", len(snapshot.Tasks)))
	return nil
}

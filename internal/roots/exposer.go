package roots

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/Norgate-AV/decompcache/internal/consumer"
	"github.com/Norgate-AV/decompcache/internal/logging"
)

// ExposerOptions configure an Exposer
type ExposerOptions struct {
	// Extensions visible through each root (default DefaultExtensions)
	Extensions []string

	// Dispatcher serializes notifications. When nil the exposer owns one.
	Dispatcher *Dispatcher
}

// Exposer publishes the valid cache entries as source roots and notifies
// the host when the set changes
type Exposer struct {
	reader     *consumer.Reader
	notifier   Notifier
	dispatcher *Dispatcher
	ownsQueue  bool
	exts       []string
	logger     *slog.Logger

	// reconcileMu orders whole reconciles: read, diff, commit and dispatch
	reconcileMu sync.Mutex

	mu       sync.Mutex
	reported []SourceRoot
}

// NewExposer creates an exposer over reader
func NewExposer(reader *consumer.Reader, notifier Notifier, opts ExposerOptions, logger *slog.Logger) *Exposer {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}

	e := &Exposer{
		reader:     reader,
		notifier:   notifier,
		dispatcher: opts.Dispatcher,
		exts:       opts.Extensions,
		logger:     logger,
	}

	if e.dispatcher == nil {
		e.dispatcher = NewDispatcher(logger)
		e.ownsQueue = true
	}

	return e
}

// Roots returns the current valid root set
func (e *Exposer) Roots() []SourceRoot {
	return FromCached(e.reader.GetCachedRoots(), e.exts)
}

// Reported returns the root set last sent to the notifier
func (e *Exposer) Reported() []SourceRoot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.reported)
}

// Reconcile recomputes the root set and, when it differs from what was last
// reported, queues a notification with the old and new sets. It does not
// wait for the notifier. Concurrent calls run one after another, so the host
// never receives an older snapshot after a newer one.
func (e *Exposer) Reconcile(ctx context.Context) Diff {
	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	if ctx.Err() != nil {
		return Diff{}
	}

	current := e.Roots()

	e.mu.Lock()
	previous := e.reported
	diff := DiffRoots(previous, current)
	if diff.Empty() {
		e.mu.Unlock()
		return diff
	}
	e.reported = current
	e.mu.Unlock()

	e.logger.Info("Source roots changed",
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"roots", len(current),
	)

	if e.notifier != nil {
		if !e.dispatcher.Dispatch(func() { e.notifier.RootsChanged(previous, current) }) {
			e.logger.Warn("Dropped root notification after shutdown")
		}
	}

	return diff
}

// OnProjectOpen reconciles when a project is opened
func (e *Exposer) OnProjectOpen(ctx context.Context) Diff {
	e.logger.Debug("Reconciling on project open", "root", e.reader.Root())
	return e.Reconcile(ctx)
}

// OnDependenciesResolved reconciles after a dependency resolution (or a producer run)
func (e *Exposer) OnDependenciesResolved(ctx context.Context) Diff {
	e.logger.Debug("Reconciling after dependency resolution", "root", e.reader.Root())
	return e.Reconcile(ctx)
}

// changed reports whether the current valid set differs from the reported one
func (e *Exposer) changed() bool {
	current := e.Roots()

	e.mu.Lock()
	defer e.mu.Unlock()

	return !DiffRoots(e.reported, current).Empty()
}

// Close flushes pending notifications. A dispatcher passed in options is left running.
func (e *Exposer) Close() {
	if e.ownsQueue {
		e.dispatcher.Close()
	}
}

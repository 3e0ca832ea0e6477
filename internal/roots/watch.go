package roots

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Norgate-AV/decompcache/internal/cache"
	"github.com/Norgate-AV/decompcache/internal/journal"
)

// WatchOptions tune Watch
type WatchOptions struct {
	// PollInterval is how often the valid set is recomputed (default 2s).
	// Polling catches artifact changes outside the cache root.
	PollInterval time.Duration

	// Debounce is the quiet period before reconciling (default 500ms)
	Debounce time.Duration
}

func (o WatchOptions) withDefaults() WatchOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}

	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}

	return o
}

// Watch reconciles once, as on project open, then keeps reconciling whenever
// the cache root or a watched root changes, until ctx is done.
// File notifications are used when available; polling always runs.
func (e *Exposer) Watch(ctx context.Context, opts WatchOptions) error {
	opts = opts.withDefaults()

	e.OnProjectOpen(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		e.logger.Warn("File notifications unavailable, polling only", "error", err)
		fw = nil
	} else {
		defer fw.Close()
	}

	watched := make(map[string]bool)
	refresh := func() {
		if fw == nil {
			return
		}

		want := map[string]bool{e.reader.Root(): true}
		for _, dir := range e.reader.RootsToWatch() {
			want[dir] = true
		}

		for dir := range watched {
			if !want[dir] {
				_ = fw.Remove(dir)
				delete(watched, dir)
			}
		}

		for dir := range want {
			if watched[dir] {
				continue
			}

			if err := fw.Add(dir); err != nil {
				e.logger.Debug("Not watching directory", "dir", dir, "error", err)
				continue
			}
			watched[dir] = true
		}
	}
	refresh()

	debouncer := NewDebouncer(opts.Debounce)
	defer debouncer.Cancel()

	trigger := func(reason string) {
		debouncer.Trigger(func() {
			if ctx.Err() != nil {
				return
			}

			e.logger.Debug("Reconciling after change", "reason", reason)
			e.Reconcile(ctx)
		})
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if fw != nil {
		events = fw.Events
		errs = fw.Errors
	}

	e.logger.Info("Watching cache", "root", e.reader.Root(), "poll", opts.PollInterval)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			if relevant(ev) {
				trigger("event")
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			e.logger.Warn("File watcher error", "error", err)

		case <-ticker.C:
			refresh()
			if e.changed() {
				trigger("poll")
			}
		}
	}
}

// relevant filters out manifest temp files and journal writes
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}

	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".manifest-") && strings.HasSuffix(name, ".tmp") {
		return false
	}

	if strings.HasPrefix(name, journal.FileName) {
		return false
	}

	return name == cache.ManifestFile || cache.IsIdentity(name) || ev.Op.Has(fsnotify.Remove)
}

// Package producer runs the batch decompile pipeline.
//
// A run loads the manifest once, walks every candidate artifact from the
// smallest to the largest, decompiles cache misses into <root>/<hash>/ and
// rewrites the manifest after each success. Entries for artifacts that are
// no longer candidates are swept at the end. Artifacts are processed one at
// a time; the decompiler's own worker count is the only parallelism.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/Norgate-AV/decompcache/internal/cache"
	"github.com/Norgate-AV/decompcache/internal/decompiler"
	"github.com/Norgate-AV/decompcache/internal/deps"
	"github.com/Norgate-AV/decompcache/internal/journal"
	"github.com/Norgate-AV/decompcache/internal/logging"
	"github.com/Norgate-AV/decompcache/internal/sink"
)

// Options tune a producer
type Options struct {
	// Threads is the decompiler worker count (default decompiler.DefaultThreads)
	Threads int

	// Extension is the suffix of written source files (default .java)
	Extension string

	// Header is prepended to every written file when set
	Header string
}

// Summary counts the outcome of a run
type Summary struct {
	Decompiled int
	Cached     int
	Failed     int
	Total      int

	// Removed counts orphaned entries and stray directories deleted by the sweep
	Removed int

	Failures []journal.Failure
}

func (s Summary) String() string {
	return fmt.Sprintf("%d decompiled, %d cached, %d failed, %d total", s.Decompiled, s.Cached, s.Failed, s.Total)
}

// Producer decompiles cache misses into a cache root
type Producer struct {
	root       string
	decompiler decompiler.Decompiler
	opts       Options
	logger     *slog.Logger
	journal    *journal.Journal

	now           func() time.Time
	releaseMemory func()
}

// New creates a producer writing under root
func New(root string, d decompiler.Decompiler, opts Options, logger *slog.Logger) *Producer {
	if opts.Threads < 1 {
		opts.Threads = decompiler.DefaultThreads
	}

	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	return &Producer{
		root:          root,
		decompiler:    d,
		opts:          opts,
		logger:        logger,
		now:           time.Now,
		releaseMemory: debug.FreeOSMemory,
	}
}

// SetJournal records every completed run in j
func (p *Producer) SetJournal(j *journal.Journal) {
	p.journal = j
}

// candidate is one artifact file to consider in a run
type candidate struct {
	library string
	state   cache.ArtifactState
	hash    string
}

// Run processes libs against the cache. Per-artifact failures are counted in
// the summary; an error is returned only when the manifest cannot be written
// or ctx is cancelled.
func (p *Producer) Run(ctx context.Context, libs []deps.Library) (Summary, error) {
	started := p.now()
	var summary Summary

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	m, err := cache.ReadManifest(p.root)
	if err != nil {
		p.logger.Warn("Ignoring unreadable manifest, starting cold", "error", err)
		m = cache.NewManifest()
	}

	candidates := p.candidates(libs, &summary)
	seen := make(map[string]bool, len(candidates))

	p.logger.Info("Starting decompilation run",
		"root", p.root,
		"candidates", len(candidates),
		"entries", m.Len(),
		"decompiler", decompiler.VersionTag(p.decompiler),
	)

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		seen[c.hash] = true

		if e, ok := m.Get(c.hash); ok && e.IsValid(c.state.Path) && e.HasCacheDir() {
			p.logger.Debug("Cache hit", "library", c.library, "artifact", c.state.Path, "hash", c.hash)
			summary.Cached++
			continue
		}

		if err := p.process(ctx, m, c, &summary); err != nil {
			return summary, err
		}

		p.releaseMemory()
	}

	removed, err := p.sweep(m, seen)
	summary.Removed = removed
	if err != nil {
		return summary, err
	}

	p.logger.Info("Decompilation run finished",
		"decompiled", summary.Decompiled,
		"cached", summary.Cached,
		"failed", summary.Failed,
		"total", summary.Total,
		"removed", summary.Removed,
		"duration", p.now().Sub(started),
	)

	p.record(started, summary)

	return summary, nil
}

// candidates flattens libs into artifacts ordered smallest first.
// Artifacts that cannot be stat'ed are counted as failures.
func (p *Producer) candidates(libs []deps.Library, summary *Summary) []candidate {
	var out []candidate
	byHash := make(map[string]bool)

	for _, lib := range libs {
		for _, file := range lib.Files {
			state, err := cache.StatArtifact(file)
			if err != nil {
				p.logger.Warn("Skipping unreadable artifact", "library", lib.Name, "artifact", file, "error", err)
				summary.Total++
				summary.Failed++
				summary.Failures = append(summary.Failures, journal.Failure{
					Library:  lib.Name,
					Artifact: file,
					Error:    err.Error(),
				})
				continue
			}

			hash := state.Identity()
			if byHash[hash] {
				continue
			}
			byHash[hash] = true

			summary.Total++
			out = append(out, candidate{library: lib.Name, state: state, hash: hash})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].state.Size != out[j].state.Size {
			return out[i].state.Size < out[j].state.Size
		}
		return out[i].state.Path < out[j].state.Path
	})

	return out
}

// process decompiles one cache miss and persists the manifest
func (p *Producer) process(ctx context.Context, m *cache.Manifest, c candidate, summary *Summary) error {
	logger := p.logger.With("library", c.library, "artifact", c.state.Path, "hash", c.hash)

	dir, err := cache.CreateEntryDir(p.root, c.hash)
	if err != nil {
		p.fail(m, c, "", err, summary, logger)
		return p.rollback(m, c.hash)
	}

	s := sink.NewDirSink(dir, p.sinkOptions()...)
	opts := decompiler.Options{
		Threads:       p.opts.Threads,
		KeepSynthetic: true,
	}

	logger.Info("Decompiling", "size", c.state.Size)
	start := p.now()

	if err := p.decompiler.Decompile(ctx, c.state.Path, s, opts); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.discard(dir, logger)
			return ctxErr
		}

		p.fail(m, c, dir, err, summary, logger)
		return p.rollback(m, c.hash)
	}

	entry := cache.NewEntry(c.library, c.state, dir, decompiler.VersionTag(p.decompiler), p.now())
	m.Put(c.hash, entry)

	if err := cache.Save(m, p.root); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	summary.Decompiled++
	logger.Info("Decompiled", "classes", s.Count(), "duration", p.now().Sub(start))

	return nil
}

func (p *Producer) sinkOptions() []sink.Option {
	var opts []sink.Option
	if p.opts.Extension != "" {
		opts = append(opts, sink.WithExtension(p.opts.Extension))
	}
	if p.opts.Header != "" {
		opts = append(opts, sink.WithHeader(p.opts.Header))
	}

	return opts
}

// fail logs a per-artifact failure, removes partial output and counts it
func (p *Producer) fail(m *cache.Manifest, c candidate, dir string, err error, summary *Summary, logger *slog.Logger) {
	oom := errors.Is(err, decompiler.ErrOutOfMemory)
	if oom {
		logger.Warn("Decompiler ran out of memory; lower --threads or raise jvm_heap", "threads", p.opts.Threads, "error", err)
	} else {
		logger.Warn("Failed to decompile", "error", err)
	}

	p.discard(dir, logger)

	summary.Failed++
	summary.Failures = append(summary.Failures, journal.Failure{
		Library:     c.library,
		Artifact:    c.state.Path,
		Hash:        c.hash,
		Error:       err.Error(),
		OutOfMemory: oom,
	})
}

func (p *Producer) discard(dir string, logger *slog.Logger) {
	if dir == "" {
		return
	}

	if err := cache.RemoveEntryDir(p.root, dir); err != nil {
		logger.Warn("Failed to remove partial output", "dir", dir, "error", err)
	}
}

// rollback drops a stale entry whose retry failed
func (p *Producer) rollback(m *cache.Manifest, hash string) error {
	if _, ok := m.Get(hash); !ok {
		return nil
	}

	m.Delete(hash)
	if err := cache.Save(m, p.root); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	return nil
}

// sweep removes entries not seen in this run and stray hash directories
func (p *Producer) sweep(m *cache.Manifest, seen map[string]bool) (int, error) {
	removed := 0

	for _, hash := range m.Hashes() {
		if seen[hash] {
			continue
		}

		e, _ := m.Get(hash)
		if err := cache.RemoveEntryDir(p.root, e.CachePath); err != nil {
			p.logger.Warn("Failed to remove orphaned entry directory", "library", e.LibraryName, "hash", hash, "error", err)
		}

		m.Delete(hash)
		removed++
		p.logger.Info("Removed orphaned entry", "library", e.LibraryName, "artifact", e.ClassesJarPath, "hash", hash)
	}

	if removed > 0 {
		if err := cache.Save(m, p.root); err != nil {
			return removed, fmt.Errorf("failed to save manifest: %w", err)
		}
	}

	stray, err := cache.PruneStray(p.root, m)
	if err != nil {
		p.logger.Warn("Failed to prune stray directories", "error", err)
	}

	for _, dir := range stray {
		p.logger.Debug("Removed stray directory", "dir", dir)
	}

	return removed + len(stray), nil
}

func (p *Producer) record(started time.Time, summary Summary) {
	if p.journal == nil {
		return
	}

	run, err := p.journal.Record(journal.Run{
		Started:    started,
		Finished:   p.now(),
		Decompiled: summary.Decompiled,
		Cached:     summary.Cached,
		Failed:     summary.Failed,
		Total:      summary.Total,
		Removed:    summary.Removed,
		Failures:   summary.Failures,
	})
	if err != nil {
		p.logger.Warn("Failed to record run in journal", "error", err)
		return
	}

	p.logger.Debug("Recorded run", "run", run.ID)
}

// Package consumer is the read-only side of the cache.
//
// A Reader reloads the manifest on every query and returns only entries that
// are coherent with the live filesystem. It never writes, so any number of
// readers may share a cache root with a running producer.
package consumer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"github.com/Norgate-AV/decompcache/internal/cache"
	"github.com/Norgate-AV/decompcache/internal/logging"
)

// CachedLibraryInfo is a validated cache entry with a live handle on its directory
type CachedLibraryInfo struct {
	LibraryName string `json:"libraryName"`
	Identity    string `json:"identity"`
	Artifact    string `json:"artifact"`
	Path        string `json:"path"`

	// FS is the resolved handle on Path
	FS fs.FS `json:"-"`
}

// Resolver turns a cache directory into the host's file abstraction.
// An error excludes the entry.
type Resolver func(dir string) (fs.FS, error)

// DirResolver resolves directories with os.DirFS
func DirResolver(dir string) (fs.FS, error) {
	return os.DirFS(dir), nil
}

// Options configure a Reader
type Options struct {
	// Resolver defaults to DirResolver
	Resolver Resolver
}

// Reader reads a cache root
type Reader struct {
	root     string
	resolver Resolver
	logger   *slog.Logger
}

// NewReader creates a reader for the cache under root
func NewReader(root string, logger *slog.Logger, opts Options) *Reader {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	if opts.Resolver == nil {
		opts.Resolver = DirResolver
	}

	return &Reader{
		root:     root,
		resolver: opts.Resolver,
		logger:   logger,
	}
}

// Root returns the cache root
func (r *Reader) Root() string {
	return r.root
}

// GetCachedRoots returns every entry whose artifact is unchanged, whose cache
// directory exists and resolves. Other entries are left out without error.
// Results are ordered by library name, then identity.
func (r *Reader) GetCachedRoots() []CachedLibraryInfo {
	m, err := cache.ReadManifest(r.root)
	if err != nil {
		r.logger.Debug("Treating unreadable manifest as empty", "root", r.root, "error", err)
		return nil
	}

	var out []CachedLibraryInfo
	for hash, e := range m.Entries {
		info, err := r.validate(hash, e)
		if err != nil {
			r.logger.Debug("Excluding cache entry", "library", e.LibraryName, "hash", hash, "reason", err)
			continue
		}

		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LibraryName != out[j].LibraryName {
			return out[i].LibraryName < out[j].LibraryName
		}
		return out[i].Identity < out[j].Identity
	})

	return out
}

// validate runs the three checks in order: artifact, directory, resolution
func (r *Reader) validate(hash string, e cache.Entry) (CachedLibraryInfo, error) {
	if !e.IsValid(e.ClassesJarPath) {
		return CachedLibraryInfo{}, fmt.Errorf("artifact %s changed or missing", e.ClassesJarPath)
	}

	if !e.HasCacheDir() {
		return CachedLibraryInfo{}, fmt.Errorf("cache directory %s missing", e.CachePath)
	}

	fsys, err := r.resolver(e.CachePath)
	if err != nil {
		return CachedLibraryInfo{}, fmt.Errorf("failed to resolve %s: %w", e.CachePath, err)
	}

	return CachedLibraryInfo{
		LibraryName: e.LibraryName,
		Identity:    hash,
		Artifact:    e.ClassesJarPath,
		Path:        e.CachePath,
		FS:          fsys,
	}, nil
}

// RootsToWatch returns the directories of the current valid entries, for a
// file watcher to react to out-of-band cache changes
func (r *Reader) RootsToWatch() []string {
	roots := r.GetCachedRoots()

	dirs := make([]string, 0, len(roots))
	for _, info := range roots {
		dirs = append(dirs, info.Path)
	}
	sort.Strings(dirs)

	return dirs
}

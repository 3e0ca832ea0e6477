// Package cache provides the on-disk model of the decompilation cache.
//
// The cache stores decompiled source trees for compiled-only artifacts
// (jars and aars shipped without a -sources companion). Its layout is:
//
//	<cache-root>/
//	  manifest.json
//	  <artifact-hash>/
//	    <package>/<...>/<ClassName>.java
//
// The manifest is the only persisted index of what is cached. It maps an
// artifact identity (SHA256 over absolute path, size and mtime) to an Entry.
// The producer rewrites it after every decompiled artifact; readers reload
// it on every query and treat a missing or malformed file as an empty cache.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// ManifestFile is the manifest file name under the cache root
	ManifestFile = "manifest.json"
)

// Manifest maps artifact identity to cache entry
type Manifest struct {
	Entries map[string]Entry `json:"entries"`
}

// NewManifest returns an empty manifest
func NewManifest() *Manifest {
	return &Manifest{Entries: make(map[string]Entry)}
}

// ManifestPath returns the manifest location for a cache root
func ManifestPath(root string) string {
	return filepath.Join(root, ManifestFile)
}

// Load reads the manifest under root.
// A missing, unreadable or malformed manifest yields an empty manifest.
func Load(root string) *Manifest {
	m, err := ReadManifest(root)
	if err != nil {
		return NewManifest()
	}

	return m
}

// ReadManifest reads the manifest under root and reports why it could not be used.
// A missing file is not an error.
func ReadManifest(root string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}

		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}

	return &m, nil
}

// Save overwrites the manifest under root, creating root if needed.
// The file is replaced by rename so readers never observe a partial write.
// There is no merge with what is on disk: the last writer wins.
func Save(m *Manifest, root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if m == nil {
		m = NewManifest()
	}

	entries := m.Entries
	if entries == nil {
		entries = make(map[string]Entry)
	}

	data, err := json.MarshalIndent(Manifest{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	tmp, err := os.CreateTemp(root, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := os.Rename(tmpPath, ManifestPath(root)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing manifest: %w", err)
	}

	return nil
}

// Get returns the entry stored under hash
func (m *Manifest) Get(hash string) (Entry, bool) {
	e, ok := m.Entries[hash]
	return e, ok
}

// Put stores entry under hash
func (m *Manifest) Put(hash string, e Entry) {
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}

	m.Entries[hash] = e
}

// Delete removes the entry stored under hash
func (m *Manifest) Delete(hash string) {
	delete(m.Entries, hash)
}

// Len returns the number of entries
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// Hashes returns the entry identities in sorted order
func (m *Manifest) Hashes() []string {
	hashes := make([]string, 0, len(m.Entries))
	for h := range m.Entries {
		hashes = append(hashes, h)
	}

	sort.Strings(hashes)

	return hashes
}

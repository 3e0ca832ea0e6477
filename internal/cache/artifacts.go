package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EntryDir returns the directory path for a given artifact hash
func EntryDir(root, hash string) string {
	return filepath.Join(root, hash)
}

// CreateEntryDir creates a fresh, empty directory for hash, discarding any previous content
func CreateEntryDir(root, hash string) (string, error) {
	dir := EntryDir(root, hash)

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear artifact directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return dir, nil
}

// RemoveEntryDir deletes a cache directory. Paths outside root are refused.
func RemoveEntryDir(root, dir string) error {
	if dir == "" {
		return nil
	}

	if !Within(root, dir) {
		return fmt.Errorf("refusing to remove %s: not under cache root %s", dir, root)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove artifact directory: %w", err)
	}

	return nil
}

// Within reports whether path is strictly inside root
func Within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// PruneStray removes hash-named directories under root that the manifest does not reference.
// They are left behind when a producer is killed mid-artifact.
func PruneStray(root string, m *Manifest) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	referenced := make(map[string]bool, m.Len())
	for hash, e := range m.Entries {
		referenced[filepath.Clean(EntryDir(root, hash))] = true
		if e.CachePath != "" {
			referenced[filepath.Clean(e.CachePath)] = true
		}
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() || !IsIdentity(entry.Name()) {
			continue
		}

		dir := EntryDir(root, entry.Name())
		if referenced[filepath.Clean(dir)] {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", dir, err)
		}

		removed = append(removed, dir)
	}

	return removed, nil
}

// Stats returns the number of manifest entries and the total size of cached files
func Stats(root string) (int, int64, error) {
	m, err := ReadManifest(root)
	if err != nil {
		return 0, 0, err
	}

	var totalSize int64
	for _, e := range m.Entries {
		if !e.HasCacheDir() {
			continue
		}

		_ = filepath.Walk(e.CachePath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // Skip errors
			}

			if !info.IsDir() {
				totalSize += info.Size()
			}

			return nil
		})
	}

	return m.Len(), totalSize, nil
}

// Clear removes the manifest and every cache entry directory under root
func Clear(root string) error {
	m := Load(root)

	for _, e := range m.Entries {
		if err := RemoveEntryDir(root, e.CachePath); err != nil {
			return err
		}
	}

	if _, err := PruneStray(root, NewManifest()); err != nil {
		return err
	}

	if err := os.Remove(ManifestPath(root)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}

	return nil
}

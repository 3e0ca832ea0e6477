// Package roots exposes cached trees to a host index as read-only source roots.
//
// Each root carries a comparison ID derived from the artifact identity, so a
// host can diff the old and new root sets and re-index only what changed.
// Roots are recomputed from the consumer on every reconcile; the exposer only
// remembers what it last reported.
package roots

import (
	"sort"

	"github.com/Norgate-AV/decompcache/internal/consumer"
)

// ComparisonPrefix namespaces comparison IDs
const ComparisonPrefix = "decompcache:"

// DefaultExtensions are the source suffixes visible through a root
var DefaultExtensions = []string{".java", ".kt"}

// SourceRoot is one synthetic source root
type SourceRoot struct {
	Library      string `json:"library"`
	ComparisonID string `json:"comparisonId"`
	Dir          string `json:"dir"`

	// FS shows only files with recognized source extensions
	FS SourceFS `json:"-"`
}

// ComparisonID returns the stable comparison ID for an artifact identity
func ComparisonID(identity string) string {
	return ComparisonPrefix + identity
}

// FromCached wraps validated cache entries as source roots
func FromCached(infos []consumer.CachedLibraryInfo, exts []string) []SourceRoot {
	out := make([]SourceRoot, 0, len(infos))
	for _, info := range infos {
		out = append(out, SourceRoot{
			Library:      info.LibraryName,
			ComparisonID: ComparisonID(info.Identity),
			Dir:          info.Path,
			FS:           NewSourceFS(info.FS, exts),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ComparisonID < out[j].ComparisonID
	})

	return out
}

// Diff is the difference between two root sets
type Diff struct {
	Added   []SourceRoot
	Removed []SourceRoot
}

// Empty reports whether nothing changed
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffRoots compares root sets by comparison ID. A root whose directory moved
// under the same ID counts as removed and added.
func DiffRoots(before, after []SourceRoot) Diff {
	oldByID := make(map[string]SourceRoot, len(before))
	for _, r := range before {
		oldByID[r.ComparisonID] = r
	}

	newByID := make(map[string]SourceRoot, len(after))
	for _, r := range after {
		newByID[r.ComparisonID] = r
	}

	var d Diff
	for _, r := range after {
		prev, ok := oldByID[r.ComparisonID]
		if !ok || prev.Dir != r.Dir {
			d.Added = append(d.Added, r)
		}
	}

	for _, r := range before {
		cur, ok := newByID[r.ComparisonID]
		if !ok || cur.Dir != r.Dir {
			d.Removed = append(d.Removed, r)
		}
	}

	return d
}

// IDs returns the comparison IDs of roots in order
func IDs(roots []SourceRoot) []string {
	ids := make([]string, 0, len(roots))
	for _, r := range roots {
		ids = append(ids, r.ComparisonID)
	}

	return ids
}

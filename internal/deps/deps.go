// Package deps enumerates the compiled dependency artifacts that need decompiling.
//
// Artifacts come from a resolved dependency listing written by the build
// (see Listing) and from scanning Maven or Gradle repository directories.
// Anything under a toolchain root (JDK, Android SDK) and anything that
// already ships a -sources companion is dropped.
package deps

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Norgate-AV/decompcache/internal/logging"
)

// Library is one logical dependency and the binary files that make it up
type Library struct {
	Name  string
	Files []string

	// Sources is an explicit source companion, if the build reported one
	Sources string
}

// Options selects where candidates come from
type Options struct {
	// ListingFile is a resolved dependency listing (YAML or JSON)
	ListingFile string

	// ScanDirs are Maven or Gradle repository roots to walk
	ScanDirs []string

	// ToolchainRoots are path prefixes whose artifacts are platform-provided
	ToolchainRoots []string
}

// Collect gathers every candidate library lacking published source,
// grouped by library name and sorted deterministically.
func Collect(opts Options, logger *slog.Logger) ([]Library, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	var found []Library

	if opts.ListingFile != "" {
		listed, err := LoadListing(opts.ListingFile)
		if err != nil {
			return nil, err
		}

		found = append(found, listed...)
	}

	for _, dir := range opts.ScanDirs {
		scanned, err := ScanRepository(dir)
		if err != nil {
			return nil, err
		}

		found = append(found, scanned...)
	}

	return Filter(found, opts.ToolchainRoots, logger), nil
}

// Filter drops toolchain and source-bearing artifacts, then groups the
// remaining files by library name. Output order is by name; files within a
// library are sorted and deduplicated.
func Filter(libs []Library, toolchainRoots []string, logger *slog.Logger) []Library {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	roots := normalizeRoots(toolchainRoots)
	byName := make(map[string]map[string]bool)
	seen := make(map[string]bool)

	for _, lib := range libs {
		for _, file := range lib.Files {
			abs, err := filepath.Abs(file)
			if err != nil {
				logger.Warn("Skipping artifact with unresolvable path", "artifact", file, "error", err)
				continue
			}

			if seen[abs] {
				continue
			}

			if underAny(abs, roots) {
				logger.Debug("Skipping toolchain artifact", "artifact", abs)
				continue
			}

			if HasSources(abs, lib.Sources) {
				logger.Debug("Skipping artifact with published sources", "artifact", abs)
				continue
			}

			if !IsBinary(abs) {
				logger.Debug("Skipping non-binary file", "artifact", abs)
				continue
			}

			seen[abs] = true

			name := lib.Name
			if name == "" {
				name = NameFromFile(abs)
			}

			if byName[name] == nil {
				byName[name] = make(map[string]bool)
			}
			byName[name][abs] = true
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Library, 0, len(names))
	for _, name := range names {
		files := make([]string, 0, len(byName[name]))
		for f := range byName[name] {
			files = append(files, f)
		}
		sort.Strings(files)

		out = append(out, Library{Name: name, Files: files})
	}

	return out
}

// IsBinary reports whether path is a compiled archive this cache handles
func IsBinary(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".aar":
	default:
		return false
	}

	base := strings.ToLower(filepath.Base(path))
	return !strings.HasSuffix(base, "-sources.jar") && !strings.HasSuffix(base, "-javadoc.jar")
}

// HasSources reports whether a published source companion exists for artifact.
// An explicit companion wins; otherwise <name>-sources.jar is looked up next
// to the artifact and, for the Gradle cache layout, in sibling hash directories.
func HasSources(artifact, explicit string) bool {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return true
		}
	}

	base := strings.TrimSuffix(filepath.Base(artifact), filepath.Ext(artifact))
	companion := base + "-sources.jar"

	dir := filepath.Dir(artifact)
	if _, err := os.Stat(filepath.Join(dir, companion)); err == nil {
		return true
	}

	if !inGradleCache(artifact) {
		return false
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(dir), "*", companion))
	return err == nil && len(matches) > 0
}

// NameFromFile derives a display name from an artifact path, using
// group:artifact:version for the Gradle cache layout and the file name otherwise
func NameFromFile(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")

	for i, p := range parts {
		if p == gradleFilesDir && i+5 < len(parts) {
			return fmt.Sprintf("%s:%s:%s", parts[i+1], parts[i+2], parts[i+3])
		}
	}

	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func normalizeRoots(roots []string) []string {
	var out []string
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}

		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}

		out = append(out, filepath.Clean(abs))
	}

	return out
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}

		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

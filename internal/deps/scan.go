package deps

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// gradleFilesDir is the Gradle module cache directory holding
// group/artifact/version/<sha1>/file
const gradleFilesDir = "files-2.1"

// ScanRepository walks a Maven repository or Gradle module cache and
// returns one Library per binary artifact found
func ScanRepository(root string) ([]Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scan directory: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("scan path %s is not a directory", root)
	}

	var libs []Library
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal
			if d != nil && d.IsDir() && path != abs {
				return filepath.SkipDir
			}
			return err
		}

		if d.IsDir() || !IsBinary(path) {
			return nil
		}

		libs = append(libs, Library{
			Name:  repositoryName(abs, path),
			Files: []string{path},
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return libs, nil
}

// repositoryName derives group:artifact:version from the repository layout
func repositoryName(root, path string) string {
	if inGradleCache(path) {
		return NameFromFile(path)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return NameFromFile(path)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return NameFromFile(path)
	}

	file := parts[len(parts)-1]
	version := parts[len(parts)-2]
	artifact := parts[len(parts)-3]

	// Maven: <group path>/<artifact>/<version>/<artifact>-<version>[-classifier].<ext>
	if !strings.HasPrefix(file, artifact+"-"+version) {
		return NameFromFile(path)
	}

	group := strings.Join(parts[:len(parts)-3], ".")
	if group == "" {
		return artifact + ":" + version
	}

	return group + ":" + artifact + ":" + version
}

func inGradleCache(path string) bool {
	for _, p := range strings.Split(filepath.ToSlash(path), "/") {
		if p == gradleFilesDir {
			return true
		}
	}

	return false
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// identitySeparator joins the identity fields. NUL cannot appear in a path.
const identitySeparator = "\x00"

// ComputeIdentity creates a unique hash for a compiled artifact
// The hash is based on:
// - Absolute artifact path
// - Byte size
// - Last-modified time in epoch milliseconds
//
// File content is not read. Two artifacts with the same path, size and
// mtime are the same artifact.
func ComputeIdentity(path string, size int64, modifiedMillis int64) string {
	h := sha256.New()

	h.Write([]byte(strings.Join([]string{
		path,
		strconv.FormatInt(size, 10),
		strconv.FormatInt(modifiedMillis, 10),
	}, identitySeparator)))

	return hex.EncodeToString(h.Sum(nil))
}

// ArtifactState is the on-disk state of an artifact at the time it was looked at
type ArtifactState struct {
	Path           string
	Size           int64
	ModifiedMillis int64
}

// Identity returns the artifact identity for this state
func (s ArtifactState) Identity() string {
	return ComputeIdentity(s.Path, s.Size, s.ModifiedMillis)
}

// StatArtifact resolves path to an absolute path and captures its size and mtime
func StatArtifact(path string) (ArtifactState, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ArtifactState{}, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return ArtifactState{}, err
	}

	if info.IsDir() {
		return ArtifactState{}, fmt.Errorf("artifact %s is a directory", abs)
	}

	return ArtifactState{
		Path:           abs,
		Size:           info.Size(),
		ModifiedMillis: info.ModTime().UnixMilli(),
	}, nil
}

// IsIdentity reports whether name looks like an artifact identity (64 lowercase hex chars)
func IsIdentity(name string) bool {
	if len(name) != sha256.Size*2 {
		return false
	}

	for _, r := range name {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}

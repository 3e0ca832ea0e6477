package cache

import (
	"os"
	"time"
)

// Entry represents one decompiled artifact in the manifest
type Entry struct {
	// LibraryName is the display name of the owning library (e.g., "com.squareup.okio:okio:3.6.0")
	LibraryName string `json:"libraryName"`

	// ClassesJarPath is the absolute path to the compiled artifact
	ClassesJarPath string `json:"classesJarPath"`

	// JarSize is the artifact size in bytes at decompile time
	JarSize int64 `json:"jarSize"`

	// JarModified is the artifact mtime in epoch milliseconds at decompile time
	JarModified int64 `json:"jarModified"`

	// CachePath is the absolute path to the directory holding the decompiled tree
	CachePath string `json:"cachePath"`

	// DecompilerVersion identifies the decompiler that produced the tree
	DecompilerVersion string `json:"decompilerVersion"`

	// CreatedAt is the creation time in epoch milliseconds
	CreatedAt int64 `json:"createdAt"`
}

// NewEntry builds an entry for a freshly decompiled artifact
func NewEntry(library string, state ArtifactState, cachePath, decompilerVersion string, now time.Time) Entry {
	return Entry{
		LibraryName:       library,
		ClassesJarPath:    state.Path,
		JarSize:           state.Size,
		JarModified:       state.ModifiedMillis,
		CachePath:         cachePath,
		DecompilerVersion: decompilerVersion,
		CreatedAt:         now.UnixMilli(),
	}
}

// Identity recomputes the identity this entry was captured under
func (e Entry) Identity() string {
	return ComputeIdentity(e.ClassesJarPath, e.JarSize, e.JarModified)
}

// IsValid reports whether the live artifact still exists with the captured size and mtime.
// The cache directory is not checked here.
func (e Entry) IsValid(liveArtifact string) bool {
	info, err := os.Stat(liveArtifact)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Size() == e.JarSize && info.ModTime().UnixMilli() == e.JarModified
}

// HasCacheDir reports whether the entry's cache directory exists and is a directory
func (e Entry) HasCacheDir() bool {
	if e.CachePath == "" {
		return false
	}

	info, err := os.Stat(e.CachePath)
	return err == nil && info.IsDir()
}

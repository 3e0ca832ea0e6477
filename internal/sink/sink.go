// Package sink turns per-class decompiler output into a package-structured
// source tree on disk.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultExtension is the suffix of written source files
const DefaultExtension = ".java"

// Sink receives decompiler results for one artifact
type Sink interface {
	// SaveClass stores the source of one class. qualifiedName is the internal
	// name, e.g. "com/example/Foo" (dots are accepted too).
	SaveClass(qualifiedName string, source []byte) error

	// SaveFolder is notified when the decompiler creates a folder
	SaveFolder(path string) error

	// CopyResource is notified for non-class archive entries
	CopyResource(path string, r io.Reader) error
}

// Option configures a DirSink
type Option func(*DirSink)

// WithExtension sets the written file suffix (default .java)
func WithExtension(ext string) Option {
	return func(s *DirSink) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		if ext != "" {
			s.ext = ext
		}
	}
}

// WithHeader prepends header to every written file
func WithHeader(header string) Option {
	return func(s *DirSink) {
		s.header = header
	}
}

// DirSink writes class sources under a root directory
type DirSink struct {
	root   string
	ext    string
	header string

	mu    sync.Mutex
	count int
}

// NewDirSink creates a sink bound to dir
func NewDirSink(dir string, opts ...Option) *DirSink {
	s := &DirSink{
		root: dir,
		ext:  DefaultExtension,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Root returns the directory the sink writes under
func (s *DirSink) Root() string {
	return s.root
}

// Count returns the number of class files written
func (s *DirSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

// PathFor returns the file a class is written to
func (s *DirSink) PathFor(qualifiedName string) (string, error) {
	rel, err := classPath(qualifiedName)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.root, filepath.FromSlash(rel)+s.ext), nil
}

// SaveClass writes the whole file at once: content goes to a temp file in
// the target directory which is then renamed over the destination.
// Safe for concurrent use.
func (s *DirSink) SaveClass(qualifiedName string, source []byte) error {
	dst, err := s.PathFor(qualifiedName)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}

	var buf bytes.Buffer
	if s.header != "" {
		buf.WriteString(s.header)
		if !strings.HasSuffix(s.header, "\n") {
			buf.WriteByte('\n')
		}
	}
	buf.Write(source)

	tmp, err := os.CreateTemp(dir, ".class-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	return nil
}

// SaveFolder is a no-op: folders are created on demand by SaveClass
func (s *DirSink) SaveFolder(string) error {
	return nil
}

// CopyResource is a no-op: only class source is cached
func (s *DirSink) CopyResource(string, io.Reader) error {
	return nil
}

// classPath converts a qualified class name to a slash-separated relative
// path without extension. Names that would escape the root are rejected.
func classPath(qualifiedName string) (string, error) {
	name := strings.TrimSpace(qualifiedName)
	name = strings.TrimSuffix(name, ".class")
	name = strings.TrimSuffix(name, ".java")
	name = strings.ReplaceAll(name, "\\", "/")

	if !strings.Contains(name, "/") {
		name = strings.ReplaceAll(name, ".", "/")
	}

	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid class name %q", qualifiedName)
	}

	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid class name %q", qualifiedName)
		}
	}

	return path.Clean(name), nil
}

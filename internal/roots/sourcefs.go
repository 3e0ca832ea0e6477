package roots

import (
	"io"
	"io/fs"
	"path"
	"strings"
)

// SourceFS is a read-only view that hides files without a source extension.
// Directories always stay visible.
type SourceFS interface {
	fs.ReadDirFS
	fs.StatFS
}

type sourceFS struct {
	base fs.FS
	exts map[string]bool
}

// NewSourceFS filters base down to files whose extension is in exts
func NewSourceFS(base fs.FS, exts []string) SourceFS {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}

	return &sourceFS{base: base, exts: set}
}

func (f *sourceFS) visible(name string, isDir bool) bool {
	return isDir || f.exts[strings.ToLower(path.Ext(name))]
}

func (f *sourceFS) Open(name string) (fs.File, error) {
	file, err := f.base.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	if !f.visible(name, info.IsDir()) {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	if info.IsDir() {
		return &sourceDir{File: file, fs: f}, nil
	}

	return file, nil
}

func (f *sourceFS) Stat(name string) (fs.FileInfo, error) {
	info, err := fs.Stat(f.base, name)
	if err != nil {
		return nil, err
	}

	if !f.visible(name, info.IsDir()) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}

	return info, nil
}

func (f *sourceFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(f.base, name)
	if err != nil {
		return nil, err
	}

	return f.filter(entries), nil
}

func (f *sourceFS) filter(entries []fs.DirEntry) []fs.DirEntry {
	out := entries[:0]
	for _, e := range entries {
		if f.visible(e.Name(), e.IsDir()) {
			out = append(out, e)
		}
	}

	return out
}

// sourceDir filters entries read through an opened directory
type sourceDir struct {
	fs.File
	fs *sourceFS

	entries []fs.DirEntry
	loaded  bool
}

func (d *sourceDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		rd, ok := d.File.(fs.ReadDirFile)
		if !ok {
			return nil, &fs.PathError{Op: "readdir", Err: fs.ErrInvalid}
		}

		all, err := rd.ReadDir(-1)
		if err != nil {
			return nil, err
		}

		d.entries = d.fs.filter(all)
		d.loaded = true
	}

	if n <= 0 {
		out := d.entries
		d.entries = nil
		return out, nil
	}

	if len(d.entries) == 0 {
		return nil, io.EOF
	}

	if n > len(d.entries) {
		n = len(d.entries)
	}

	out := d.entries[:n]
	d.entries = d.entries[n:]

	return out, nil
}

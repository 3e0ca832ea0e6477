package decompiler

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// CountClasses returns the number of .class entries in a jar
func CountClasses(archive string) (int, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer r.Close()

	count := 0
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.HasSuffix(f.Name, ".class") {
			count++
		}
	}

	return count, nil
}

// IsAar reports whether path is an Android archive
func IsAar(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".aar")
}

// ExtractAarJars copies classes.jar and libs/*.jar out of an aar into dir
// and returns the extracted paths in archive order.
func ExtractAarJars(aar, dir string) ([]string, error) {
	r, err := zip.OpenReader(aar)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", aar, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	var jars []string
	for _, f := range r.File {
		if !isAarClassesEntry(f.Name) {
			continue
		}

		dst := filepath.Join(dir, fmt.Sprintf("%d-%s", len(jars), path.Base(f.Name)))
		if err := extractFile(f, dst); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}

		jars = append(jars, dst)
	}

	return jars, nil
}

func isAarClassesEntry(name string) bool {
	if name == "classes.jar" {
		return true
	}

	return path.Dir(name) == "libs" && strings.HasSuffix(name, ".jar")
}

func extractFile(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink_SaveClass(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir)

	require.NoError(t, s.SaveClass("com/example/Foo", []byte("package com.example;\nclass Foo {}\n")))

	path := filepath.Join(dir, "com", "example", "Foo.java")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package com.example;\nclass Foo {}\n", string(data))
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, dir, s.Root())
}

func TestDirSink_Overwrites(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir)

	require.NoError(t, s.SaveClass("com/example/Foo", []byte("a much longer first version of the file")))
	require.NoError(t, s.SaveClass("com/example/Foo", []byte("short")))

	data, err := os.ReadFile(filepath.Join(dir, "com", "example", "Foo.java"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(data), "Writes replace the whole file")

	entries, err := os.ReadDir(filepath.Join(dir, "com", "example"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "No temporary files are left behind")
}

func TestDirSink_PathFor(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"internal name", "com/example/Foo", filepath.Join(dir, "com", "example", "Foo.java"), false},
		{"dotted name", "com.example.Foo", filepath.Join(dir, "com", "example", "Foo.java"), false},
		{"default package", "Foo", filepath.Join(dir, "Foo.java"), false},
		{"class suffix", "com/example/Foo.class", filepath.Join(dir, "com", "example", "Foo.java"), false},
		{"inner class", "com/example/Foo$Bar", filepath.Join(dir, "com", "example", "Foo$Bar.java"), false},
		{"backslashes", `com\example\Foo`, filepath.Join(dir, "com", "example", "Foo.java"), false},
		{"empty", "", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"parent traversal", "../../evil/Foo", "", true},
		{"embedded traversal", "com/../../Foo", "", true},
		{"double slash", "com//Foo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.PathFor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirSink_RejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "cache")
	s := NewDirSink(dir)

	err := s.SaveClass("../Escaped", []byte("x"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(parent, "Escaped.java"))
	assert.Equal(t, 0, s.Count())
}

func TestDirSink_Options(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir, WithExtension("kt"), WithHeader("// Decompiled source: names and comments may differ"))

	require.NoError(t, s.SaveClass("a/B", []byte("class B")))

	data, err := os.ReadFile(filepath.Join(dir, "a", "B.kt"))
	require.NoError(t, err)
	assert.Equal(t, "// Decompiled source: names and comments may differ\nclass B", string(data))
}

func TestDirSink_NoOps(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir)

	require.NoError(t, s.SaveFolder("com/example"))
	require.NoError(t, s.CopyResource("META-INF/MANIFEST.MF", strings.NewReader("Manifest-Version: 1.0")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "Folders and resources are not persisted")
}

func TestDirSink_Concurrent(t *testing.T) {
	dir := t.TempDir()
	s := NewDirSink(dir)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.SaveClass(fmt.Sprintf("pkg%d/C%d", i%4, i), []byte("class")))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, s.Count())
}

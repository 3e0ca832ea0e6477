package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, path string, size int, modifiedMillis int64) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))

	mtime := time.UnixMilli(modifiedMillis)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestComputeIdentity(t *testing.T) {
	hash1 := ComputeIdentity("/libs/foo-1.0.jar", 40960, 1700000000000)
	assert.Len(t, hash1, 64)
	assert.True(t, IsIdentity(hash1))

	// Hash should be consistent
	hash2 := ComputeIdentity("/libs/foo-1.0.jar", 40960, 1700000000000)
	assert.Equal(t, hash1, hash2, "Hash should be consistent")

	// Any field change = different hash
	assert.NotEqual(t, hash1, ComputeIdentity("/libs/foo-1.1.jar", 40960, 1700000000000), "Different path should produce different hash")
	assert.NotEqual(t, hash1, ComputeIdentity("/libs/foo-1.0.jar", 41000, 1700000000000), "Different size should produce different hash")
	assert.NotEqual(t, hash1, ComputeIdentity("/libs/foo-1.0.jar", 40960, 1700000000001), "Different mtime should produce different hash")

	// Field boundaries are not ambiguous
	assert.NotEqual(t,
		ComputeIdentity("/libs/a1", 23, 5),
		ComputeIdentity("/libs/a", 123, 5),
	)
}

func TestIsIdentity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"computed hash", ComputeIdentity("/x.jar", 1, 1), true},
		{"too short", "abc123", false},
		{"uppercase hex", "ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789", false},
		{"not hex", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", false},
		{"manifest file", ManifestFile, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIdentity(tt.input))
		})
	}
}

func TestStatArtifact(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "foo-1.0.jar")
	writeArtifact(t, jar, 40960, 1700000000000)

	state, err := StatArtifact(jar)
	require.NoError(t, err)

	assert.Equal(t, jar, state.Path)
	assert.Equal(t, int64(40960), state.Size)
	assert.Equal(t, int64(1700000000000), state.ModifiedMillis)
	assert.Equal(t, ComputeIdentity(jar, 40960, 1700000000000), state.Identity())

	_, err = StatArtifact(filepath.Join(dir, "missing.jar"))
	assert.True(t, os.IsNotExist(err))

	_, err = StatArtifact(dir)
	assert.Error(t, err, "directories are not artifacts")
}

func TestEntry_IsValid(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "foo-1.0.jar")
	writeArtifact(t, jar, 40960, 1700000000000)

	state, err := StatArtifact(jar)
	require.NoError(t, err)

	entry := NewEntry("com.example:foo:1.0", state, filepath.Join(dir, state.Identity()), "fake/1", time.Now())
	assert.True(t, entry.IsValid(jar))
	assert.Equal(t, state.Identity(), entry.Identity())

	t.Run("mtime changed", func(t *testing.T) {
		writeArtifact(t, jar, 40960, 1700000000001)
		assert.False(t, entry.IsValid(jar))
	})

	t.Run("size changed", func(t *testing.T) {
		writeArtifact(t, jar, 41000, 1700000000000)
		assert.False(t, entry.IsValid(jar))
	})

	t.Run("artifact removed", func(t *testing.T) {
		require.NoError(t, os.Remove(jar))
		assert.False(t, entry.IsValid(jar))
	})
}

func TestEntry_HasCacheDir(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, Entry{}.HasCacheDir())
	assert.True(t, Entry{CachePath: dir}.HasCacheDir())
	assert.False(t, Entry{CachePath: filepath.Join(dir, "missing")}.HasCacheDir())

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.False(t, Entry{CachePath: file}.HasCacheDir())
}

func TestManifest_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]Entry
	}{
		{
			name:    "empty",
			entries: map[string]Entry{},
		},
		{
			name: "single entry",
			entries: map[string]Entry{
				ComputeIdentity("/libs/foo-1.0.jar", 40960, 1700000000000): {
					LibraryName:       "com.example:foo:1.0",
					ClassesJarPath:    "/libs/foo-1.0.jar",
					JarSize:           40960,
					JarModified:       1700000000000,
					CachePath:         "/cache/abc",
					DecompilerVersion: "vineflower/1.10.1",
					CreatedAt:         1700000001234,
				},
			},
		},
		{
			name: "unicode paths and names",
			entries: map[string]Entry{
				ComputeIdentity("/bibliothèques/日本語-1.0.jar", 10, 20): {
					LibraryName:    "org.exämple:日本語:1.0 <beta> & co",
					ClassesJarPath: "/bibliothèques/日本語-1.0.jar",
					JarSize:        10,
					JarModified:    20,
					CachePath:      "/cache/ünïcode",
				},
				ComputeIdentity("/libs/bar.jar", 1, 2): {
					LibraryName:    "bar",
					ClassesJarPath: "/libs/bar.jar",
					JarSize:        1,
					JarModified:    2,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "nested", "root")
			m := &Manifest{Entries: tt.entries}

			require.NoError(t, Save(m, root))

			loaded := Load(root)
			assert.Equal(t, m.Entries, loaded.Entries)
		})
	}
}

func TestSave_Deterministic(t *testing.T) {
	root := t.TempDir()
	m := NewManifest()
	for i := 0; i < 20; i++ {
		path := filepath.Join("/libs", string(rune('a'+i))+".jar")
		m.Put(ComputeIdentity(path, int64(i), 1), Entry{LibraryName: path, ClassesJarPath: path, JarSize: int64(i), JarModified: 1})
	}

	require.NoError(t, Save(m, root))
	first, err := os.ReadFile(ManifestPath(root))
	require.NoError(t, err)

	require.NoError(t, Save(Load(root), root))
	second, err := os.ReadFile(ManifestPath(root))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestSave_NoTemporaryFilesLeft(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Save(NewManifest(), root))
	require.NoError(t, Save(NewManifest(), root))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestFile, entries[0].Name())
}

func TestLoad_ColdStart(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{"missing file", nil},
		{"empty file", ptr("")},
		{"truncated json", ptr(`{"entries": {"abc": {"libraryName": `)},
		{"wrong type", ptr(`{"entries": ["a", "b"]}`)},
		{"not json", ptr("garbage")},
		{"null entries", ptr(`{"entries": null}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.content != nil {
				require.NoError(t, os.WriteFile(ManifestPath(root), []byte(*tt.content), 0o644))
			}

			m := Load(root)
			require.NotNil(t, m)
			assert.NotNil(t, m.Entries)
			assert.Equal(t, 0, m.Len())
		})
	}
}

func TestReadManifest_ReportsCorruption(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(ManifestPath(root), []byte("garbage"), 0o644))

	_, err := ReadManifest(root)
	assert.ErrorContains(t, err, "parsing manifest")
}

func TestLoad_ToleratesUnknownFields(t *testing.T) {
	root := t.TempDir()
	content := `{
  "schema": 7,
  "entries": {
    "abc": {
      "libraryName": "foo",
      "classesJarPath": "/libs/foo.jar",
      "jarSize": 40960,
      "jarModified": 1700000000000,
      "cachePath": "/cache/abc",
      "decompilerVersion": "v",
      "createdAt": 1,
      "checksum": "ignored"
    }
  }
}`
	require.NoError(t, os.WriteFile(ManifestPath(root), []byte(content), 0o644))

	m := Load(root)
	entry, ok := m.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "foo", entry.LibraryName)
	assert.Equal(t, int64(40960), entry.JarSize)
	assert.Equal(t, int64(1700000000000), entry.JarModified)
}

func TestManifest_Hashes(t *testing.T) {
	m := NewManifest()
	m.Put("b", Entry{})
	m.Put("a", Entry{})
	m.Put("c", Entry{})
	m.Delete("c")

	assert.Equal(t, []string{"a", "b"}, m.Hashes())
	assert.Equal(t, 2, m.Len())

	var zero Manifest
	zero.Put("x", Entry{})
	assert.Equal(t, 1, zero.Len())
}

func ptr(s string) *string {
	return &s
}

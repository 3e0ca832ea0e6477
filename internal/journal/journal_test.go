package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRuns(t *testing.T) {
	root := t.TempDir()
	j := New(root)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := j.Record(Run{
		Started:    base,
		Finished:   base.Add(2 * time.Second),
		Decompiled: 2,
		Total:      2,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	assert.NoError(t, err, "Record should assign a UUID run ID")

	second, err := j.Record(Run{
		ID:       "fixed-id",
		Started:  base.Add(time.Minute),
		Finished: base.Add(time.Minute + time.Second),
		Cached:   1,
		Failed:   1,
		Total:    2,
		Failures: []Failure{{
			Library:     "com.example:bad:1.0",
			Artifact:    "/libs/bad-1.0.jar",
			Hash:        "abc",
			Error:       "decompiler ran out of memory",
			OutOfMemory: true,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", second.ID)

	assert.FileExists(t, filepath.Join(root, FileName))

	runs, err := j.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "fixed-id", runs[0].ID, "Newest run should come first")
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, time.Second, runs[0].Duration())
	require.Len(t, runs[0].Failures, 1)
	assert.True(t, runs[0].Failures[0].OutOfMemory)

	limited, err := j.Runs(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	last, ok, err := j.Last()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fixed-id", last.ID)
}

func TestRunsMissingJournal(t *testing.T) {
	root := t.TempDir()
	j := New(root)

	runs, err := j.Runs(10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, ok, err := j.Last()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(Path(root))
	assert.True(t, os.IsNotExist(err), "Reading should not create the journal")
}

func TestRetention(t *testing.T) {
	j := New(t.TempDir())
	j.SetRetain(3)

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		_, err := j.Record(Run{
			ID:      NewRunID(),
			Started: base.Add(time.Duration(i) * time.Minute),
			Total:   i,
		})
		require.NoError(t, err)
	}

	runs, err := j.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, 4, runs[0].Total)
	assert.Equal(t, 3, runs[1].Total)
	assert.Equal(t, 2, runs[2].Total)
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	j := New(root)

	_, err := j.Record(Run{Started: time.Now()})
	require.NoError(t, err)

	require.NoError(t, j.Remove())
	assert.NoFileExists(t, Path(root))

	assert.NoError(t, j.Remove(), "Removing a missing journal is not an error")
}

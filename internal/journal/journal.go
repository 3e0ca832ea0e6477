// Package journal records producer runs in a BoltDB file under the cache root.
//
// The journal is informational only. The manifest stays the single index of
// what is cached; the journal keeps a history of runs and the artifacts that
// failed in each, so "status" can show why a library has no decompiled tree.
// The database is opened for a single operation and closed again, so a
// reader never holds the lock across a producer run.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	// FileName is the journal database name under the cache root
	FileName = "journal.db"

	// bucketName is the BoltDB bucket holding run records keyed by start time
	bucketName = "runs"

	// openTimeout bounds how long we wait for another process holding the file lock
	openTimeout = 1 * time.Second

	// DefaultRetain is how many runs are kept before the oldest are dropped
	DefaultRetain = 50
)

// Failure is one artifact that could not be decompiled during a run
type Failure struct {
	Library     string `json:"library"`
	Artifact    string `json:"artifact"`
	Hash        string `json:"hash"`
	Error       string `json:"error"`
	OutOfMemory bool   `json:"outOfMemory,omitempty"`
}

// Run is the persisted record of one producer run
type Run struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Decompiled int       `json:"decompiled"`
	Cached     int       `json:"cached"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	Removed    int       `json:"removed"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Duration returns how long the run took
func (r Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Journal is a handle on the journal database path
type Journal struct {
	path   string
	retain int
}

// New returns a journal stored under cacheRoot
func New(cacheRoot string) *Journal {
	return &Journal{
		path:   Path(cacheRoot),
		retain: DefaultRetain,
	}
}

// Path returns the journal location for a cache root
func Path(cacheRoot string) string {
	return filepath.Join(cacheRoot, FileName)
}

// SetRetain changes how many runs are kept. Values below 1 keep everything.
func (j *Journal) SetRetain(n int) {
	j.retain = n
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

func (j *Journal) open(readOnly bool) (*bbolt.DB, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bbolt.Open(j.path, 0o600, &bbolt.Options{Timeout: openTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return db, nil
}

// Record stores a run, assigning an ID if it has none, and drops runs beyond the retention limit
func (j *Journal) Record(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	db, err := j.open(false)
	if err != nil {
		return run, err
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}

		data, err := json.Marshal(run)
		if err != nil {
			return err
		}

		if err := b.Put(runKey(run), data); err != nil {
			return err
		}

		return trim(b, j.retain)
	})
	if err != nil {
		return run, fmt.Errorf("failed to record run: %w", err)
	}

	return run, nil
}

// Runs returns up to limit runs, newest first. A limit below 1 returns all runs.
// A missing journal yields no runs.
func (j *Journal) Runs(limit int) ([]Run, error) {
	if _, err := os.Stat(j.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	db, err := j.open(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var runs []Run
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				continue // Skip records written by an incompatible version
			}

			runs = append(runs, run)
			if limit > 0 && len(runs) == limit {
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	return runs, nil
}

// Last returns the most recent run, or false if none has been recorded
func (j *Journal) Last() (Run, bool, error) {
	runs, err := j.Runs(1)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}

	return runs[0], true, nil
}

// Remove deletes the journal file
func (j *Journal) Remove() error {
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove journal: %w", err)
	}

	return nil
}

// runKey orders records by start time; the ID suffix keeps same-millisecond runs apart
func runKey(run Run) []byte {
	return []byte(fmt.Sprintf("%020d-%s", run.Started.UnixNano(), run.ID))
}

func trim(b *bbolt.Bucket, retain int) error {
	if retain < 1 {
		return nil
	}

	var keys []string
	if err := b.ForEach(func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}); err != nil {
		return err
	}

	if len(keys) <= retain {
		return nil
	}

	sort.Strings(keys)
	for _, k := range keys[:len(keys)-retain] {
		if err := b.Delete([]byte(k)); err != nil {
			return err
		}
	}

	return nil
}

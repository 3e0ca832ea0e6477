// Package decompiler wraps a bytecode decompiler behind a small interface.
//
// The decompiler is opaque: it receives one compiled artifact and reports
// each class's source text to a sink.Sink. Everything about how classes are
// analysed belongs to the decompiler itself.
package decompiler

import (
	"context"
	"errors"

	"github.com/Norgate-AV/decompcache/internal/sink"
)

// DefaultThreads is the default decompiler worker count.
// Per-class analysis can be memory hungry, so it is kept low.
const DefaultThreads = 2

var (
	// ErrOutOfMemory is returned when the decompiler exhausted its heap
	ErrOutOfMemory = errors.New("decompiler ran out of memory")

	// ErrNotConfigured is returned when no decompiler binary is configured
	ErrNotConfigured = errors.New("decompiler path not configured")
)

// Options control a single decompile call
type Options struct {
	// Threads bounds the decompiler's internal concurrency
	Threads int

	// KeepSynthetic retains compiler-generated members (bridge and lambda methods)
	KeepSynthetic bool
}

// DefaultOptions returns the options the producer uses
func DefaultOptions() Options {
	return Options{
		Threads:       DefaultThreads,
		KeepSynthetic: true,
	}
}

func (o Options) threads() int {
	if o.Threads < 1 {
		return 1
	}

	return o.Threads
}

// Decompiler decompiles one artifact into a sink
type Decompiler interface {
	// Name is a short identifier, e.g. "vineflower"
	Name() string

	// Version is the decompiler's own version
	Version() string

	// Decompile writes every class in artifact to s. A returned error means
	// the output is incomplete and must be discarded.
	Decompile(ctx context.Context, artifact string, s sink.Sink, opts Options) error
}

// VersionTag returns the tag recorded in cache entries, e.g. "vineflower/1.10.1"
func VersionTag(d Decompiler) string {
	return d.Name() + "/" + d.Version()
}

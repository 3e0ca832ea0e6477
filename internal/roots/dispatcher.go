package roots

import (
	"log/slog"
	"sync"

	"github.com/Norgate-AV/decompcache/internal/logging"
)

// Notifier receives root set changes. Calls are serialized by a Dispatcher.
type Notifier interface {
	RootsChanged(before, after []SourceRoot)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(before, after []SourceRoot)

// RootsChanged calls f
func (f NotifierFunc) RootsChanged(before, after []SourceRoot) {
	f(before, after)
}

// Dispatcher runs tasks one at a time on a single goroutine, in submission order.
// Index mutations go through it so they never overlap. Dispatch never blocks:
// pending tasks are held in an unbounded list, so a task may dispatch another.
type Dispatcher struct {
	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	pending []func()
	closed  bool
}

// NewDispatcher starts a dispatcher goroutine
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	d := &Dispatcher{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}

	go d.loop()

	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.pending) == 0 {
				closed := d.closed
				d.mu.Unlock()

				if closed {
					return
				}
				break
			}

			task := d.pending[0]
			d.pending[0] = nil
			d.pending = d.pending[1:]
			d.mu.Unlock()

			d.run(task)
		}
	}
}

func (d *Dispatcher) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Root notification panicked", "panic", r)
		}
	}()

	task()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Dispatch queues task without waiting for it to run.
// It returns false once the dispatcher is closed.
func (d *Dispatcher) Dispatch(task func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}

	d.pending = append(d.pending, task)
	d.mu.Unlock()

	d.signal()
	return true
}

// Close runs the queued tasks and stops the dispatcher.
// Tasks dispatched by a queued task after Close are refused.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.signal()
	<-d.done
}

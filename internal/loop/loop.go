// Package loop provides the single logical thread every dbgview handler and
// continuation runs on.
//
// Blocking work (backend queries, opening buffers) is started with Await: the
// work function runs on its own goroutine and its continuation is posted back
// to the loop, so continuations never run in parallel with handlers. Ordering
// between continuations is not guaranteed; they must re-validate any state
// they touch.
package loop

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
)

// ErrStopped is returned when posting to or running a stopped loop.
var ErrStopped = errors.New("loop stopped")

// PanicHandler receives panics recovered from posted functions.
type PanicHandler func(value any, stack []byte)

// Loop is a serial task queue drained by a single goroutine at a time.
type Loop struct {
	mu       sync.Mutex
	pending  []func()
	inflight int
	stopped  bool
	wake     chan struct{}

	onPanic PanicHandler
}

// Option configures a Loop.
type Option func(*Loop)

// WithPanicHandler sets the handler for panics in posted functions.
func WithPanicHandler(h PanicHandler) Option {
	return func(l *Loop) {
		l.onPanic = h
	}
}

// New creates a loop.
func New(opts ...Option) *Loop {
	l := &Loop{wake: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post enqueues fn to run on the loop. Safe for concurrent use.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	l.signal()
	return nil
}

// Pending returns the number of queued functions plus in-flight work items.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) + l.inflight
}

// Run drains the queue until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		fn, ok := l.next()
		if ok {
			l.exec(fn)
			continue
		}
		if l.isStopped() {
			return ErrStopped
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunUntilIdle drains the queue and waits for in-flight work until nothing is
// left to do. The calling goroutine acts as the loop thread.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	for {
		fn, ok := l.next()
		if ok {
			l.exec(fn)
			continue
		}

		l.mu.Lock()
		idle := l.inflight == 0 && len(l.pending) == 0
		l.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop rejects further posts and makes Run return once the queue is empty.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if l.onPanic != nil {
				l.onPanic(r, debug.Stack())
			}
		}
	}()
	fn()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// begin registers in-flight work so RunUntilIdle waits for it.
func (l *Loop) begin() {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()
}

// finish posts the continuation and releases the in-flight slot atomically,
// so an idle check never sees neither.
func (l *Loop) finish(cont func()) {
	l.mu.Lock()
	l.inflight--
	if !l.stopped {
		l.pending = append(l.pending, cont)
	}
	l.mu.Unlock()
	l.signal()
}

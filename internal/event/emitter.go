package event

import (
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// HandlerFunc handles one emitted value.
type HandlerFunc[E any] func(E) error

// ErrorHandler receives handler failures (HandlerError or PanicError).
type ErrorHandler func(error)

type entry[E any] struct {
	sub *subscription
	fn  HandlerFunc[E]
}

// Emitter is a typed multicast event source.
//
// Emit delivers synchronously on the caller's goroutine. A handler subscribed
// during an Emit first sees the next value; one disposed during an Emit is
// skipped for the rest of it.
type Emitter[E any] struct {
	topic string

	mu      sync.RWMutex
	entries []entry[E]
	onError ErrorHandler
}

// NewEmitter creates an emitter for the named topic.
func NewEmitter[E any](topic string) *Emitter[E] {
	return &Emitter[E]{topic: topic}
}

// Topic returns the emitter's topic name.
func (e *Emitter[E]) Topic() string {
	return e.topic
}

// SetErrorHandler sets where handler errors and panics are reported.
// With no error handler they are dropped.
func (e *Emitter[E]) SetErrorHandler(h ErrorHandler) {
	e.mu.Lock()
	e.onError = h
	e.mu.Unlock()
}

// Subscribe registers fn and returns its subscription handle.
// It panics with ErrNilHandler if fn is nil.
func (e *Emitter[E]) Subscribe(fn HandlerFunc[E]) Subscription {
	if fn == nil {
		panic(ErrNilHandler)
	}

	sub := &subscription{id: uuid.NewString(), release: e.remove}

	e.mu.Lock()
	e.entries = append(e.entries, entry[E]{sub: sub, fn: fn})
	e.mu.Unlock()

	return sub
}

// SubscribeFunc registers a handler that cannot fail.
func (e *Emitter[E]) SubscribeFunc(fn func(E)) Subscription {
	if fn == nil {
		panic(ErrNilHandler)
	}
	return e.Subscribe(func(ev E) error {
		fn(ev)
		return nil
	})
}

// Len returns the number of active subscriptions.
func (e *Emitter[E]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}

// Clear disposes every subscription.
func (e *Emitter[E]) Clear() {
	e.mu.Lock()
	entries := e.entries
	e.entries = nil
	e.mu.Unlock()

	for _, en := range entries {
		en.sub.disposed.Store(true)
	}
}

// Emit delivers ev to every active handler in subscription order and returns
// the number of handlers that failed.
func (e *Emitter[E]) Emit(ev E) int {
	e.mu.RLock()
	entries := make([]entry[E], len(e.entries))
	copy(entries, e.entries)
	onError := e.onError
	e.mu.RUnlock()

	failed := 0
	for _, en := range entries {
		if !en.sub.IsActive() {
			continue
		}
		if err := e.call(en, ev); err != nil {
			failed++
			if onError != nil {
				onError(err)
			}
		}
	}
	return failed
}

// call runs one handler, converting errors and panics.
func (e *Emitter[E]) call(en entry[E], ev E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				SubscriptionID: en.sub.id,
				Topic:          e.topic,
				Value:          r,
				Stack:          string(debug.Stack()),
			}
		}
	}()

	if herr := en.fn(ev); herr != nil {
		return &HandlerError{SubscriptionID: en.sub.id, Topic: e.topic, Err: herr}
	}
	return nil
}

func (e *Emitter[E]) remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, en := range e.entries {
		if en.sub.id == id {
			e.entries = append(e.entries[:i:i], e.entries[i+1:]...)
			return
		}
	}
}

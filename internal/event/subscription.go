package event

import (
	"sync"
	"sync/atomic"
)

// Subscription is a handle to a registered handler.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// IsActive returns true until the subscription is disposed.
	IsActive() bool

	// Dispose permanently removes the handler. Disposing twice is a no-op.
	Dispose()
}

// subscription is the emitter-owned implementation of Subscription.
type subscription struct {
	id       string
	disposed atomic.Bool
	release  func(id string)
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) IsActive() bool {
	return !s.disposed.Load()
}

func (s *subscription) Dispose() {
	if s.disposed.Swap(true) {
		return
	}
	if s.release != nil {
		s.release(s.id)
	}
}

// Group collects subscriptions so they can be disposed together.
// The zero value is ready to use.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

// Add appends subscriptions to the group. Nil entries are ignored.
func (g *Group) Add(subs ...Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			g.subs = append(g.subs, s)
		}
	}
}

// Len returns the number of subscriptions held.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Dispose disposes every subscription in reverse registration order and
// empties the group.
func (g *Group) Dispose() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Dispose()
	}
}

package event

import (
	"sync"
	"testing"
)

func TestSubscription_DisposeIdempotent(t *testing.T) {
	e := NewEmitter[int]("numbers")
	calls := 0
	sub := e.SubscribeFunc(func(int) { calls++ })

	if sub.ID() == "" {
		t.Error("subscription has no ID")
	}
	if !sub.IsActive() {
		t.Error("new subscription is not active")
	}

	sub.Dispose()
	sub.Dispose()
	if sub.IsActive() {
		t.Error("disposed subscription is still active")
	}
	if e.Len() != 0 {
		t.Errorf("Len = %d after dispose", e.Len())
	}
	e.Emit(1)
	if calls != 0 {
		t.Errorf("disposed handler ran %d times", calls)
	}
}

func TestSubscription_UniqueIDs(t *testing.T) {
	e := NewEmitter[int]("numbers")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := e.SubscribeFunc(func(int) {}).ID()
		if seen[id] {
			t.Fatalf("duplicate subscription ID %s", id)
		}
		seen[id] = true
	}
}

func TestGroup_ReverseOrderAndNil(t *testing.T) {
	var order []string
	var g Group
	g.Add(&subscription{id: "a", release: func(id string) { order = append(order, id) }}, nil)
	g.Add(&subscription{id: "b", release: func(id string) { order = append(order, id) }})

	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
	g.Dispose()
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("dispose order = %v, want [b a]", order)
	}
	if g.Len() != 0 {
		t.Error("group not emptied")
	}
	g.Dispose()
}

func TestGroup_ConcurrentAdd(t *testing.T) {
	e := NewEmitter[int]("numbers")
	var g Group
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Add(e.SubscribeFunc(func(int) {}))
		}()
	}
	wg.Wait()
	if g.Len() != 20 || e.Len() != 20 {
		t.Fatalf("group %d, emitter %d", g.Len(), e.Len())
	}
	g.Dispose()
	if e.Len() != 0 {
		t.Errorf("emitter still has %d subscribers", e.Len())
	}
}

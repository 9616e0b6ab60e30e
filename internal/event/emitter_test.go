package event

import (
	"errors"
	"testing"
)

func TestEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	e := NewEmitter[int]("numbers")

	var got []string
	e.SubscribeFunc(func(n int) { got = append(got, "first") })
	e.SubscribeFunc(func(n int) { got = append(got, "second") })
	e.SubscribeFunc(func(n int) { got = append(got, "third") })

	if failed := e.Emit(1); failed != 0 {
		t.Fatalf("expected no failures, got %d", failed)
	}

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestEmitter_NoCoalescing(t *testing.T) {
	e := NewEmitter[int]("numbers")

	var got []int
	e.SubscribeFunc(func(n int) { got = append(got, n) })

	for i := 0; i < 5; i++ {
		e.Emit(i)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(got))
	}
	for i, n := range got {
		if n != i {
			t.Errorf("delivery %d: expected %d, got %d", i, i, n)
		}
	}
}

func TestEmitter_ErrorIsolatedPerHandler(t *testing.T) {
	e := NewEmitter[string]("session")

	var reported []error
	e.SetErrorHandler(func(err error) { reported = append(reported, err) })

	boom := errors.New("boom")
	ran := false
	e.Subscribe(func(string) error { return boom })
	e.Subscribe(func(string) error { panic("kaboom") })
	e.SubscribeFunc(func(string) { ran = true })

	if failed := e.Emit("suspended"); failed != 2 {
		t.Fatalf("expected 2 failures, got %d", failed)
	}
	if !ran {
		t.Error("handler after failing handlers did not run")
	}
	if len(reported) != 2 {
		t.Fatalf("expected 2 reported errors, got %d", len(reported))
	}

	var herr *HandlerError
	if !errors.As(reported[0], &herr) || !errors.Is(reported[0], boom) {
		t.Errorf("expected HandlerError wrapping boom, got %v", reported[0])
	}
	if herr.Topic != "session" {
		t.Errorf("expected topic session, got %s", herr.Topic)
	}

	var perr *PanicError
	if !errors.As(reported[1], &perr) {
		t.Fatalf("expected PanicError, got %T", reported[1])
	}
	if !errors.Is(reported[1], ErrHandlerPanic) {
		t.Error("PanicError should match ErrHandlerPanic")
	}
	if perr.Value != "kaboom" {
		t.Errorf("expected panic value kaboom, got %v", perr.Value)
	}
}

func TestSubscription_Dispose(t *testing.T) {
	e := NewEmitter[int]("numbers")

	count := 0
	sub := e.SubscribeFunc(func(int) { count++ })

	e.Emit(1)
	sub.Dispose()
	sub.Dispose()
	e.Emit(2)

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
	if sub.IsActive() {
		t.Error("disposed subscription reports active")
	}
	if e.Len() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", e.Len())
	}
}

func TestEmitter_DisposeDuringEmit(t *testing.T) {
	e := NewEmitter[int]("numbers")

	var second Subscription
	secondCalls := 0
	e.SubscribeFunc(func(int) { second.Dispose() })
	second = e.SubscribeFunc(func(int) { secondCalls++ })

	e.Emit(1)
	if secondCalls != 0 {
		t.Errorf("handler disposed earlier in the same emit still ran %d times", secondCalls)
	}
}

func TestEmitter_NilHandlerPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != ErrNilHandler {
			t.Errorf("expected ErrNilHandler panic, got %v", r)
		}
	}()
	NewEmitter[int]("numbers").Subscribe(nil)
}

func TestGroup_DisposeAll(t *testing.T) {
	a := NewEmitter[int]("a")
	b := NewEmitter[string]("b")

	var g Group
	g.Add(a.SubscribeFunc(func(int) {}), b.SubscribeFunc(func(string) {}), nil)

	if g.Len() != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", g.Len())
	}

	g.Dispose()

	if a.Len() != 0 || b.Len() != 0 {
		t.Errorf("expected emitters to be empty, got a=%d b=%d", a.Len(), b.Len())
	}
	if g.Len() != 0 {
		t.Errorf("expected empty group, got %d", g.Len())
	}
}

func TestEmitter_Clear(t *testing.T) {
	e := NewEmitter[int]("test")
	calls := 0
	sub := e.SubscribeFunc(func(int) { calls++ })
	e.Clear()

	e.Emit(1)
	if calls != 0 || e.Len() != 0 {
		t.Errorf("calls = %d, len = %d after Clear", calls, e.Len())
	}
	if sub.IsActive() {
		t.Error("subscription still active after Clear")
	}
	sub.Dispose()
}

// Package event provides typed, synchronous multicast emitters.
//
// An Emitter delivers each emitted value to every active subscriber in
// subscription order, on the emitting goroutine, without coalescing. Each
// handler runs in isolation: a returned error or a panic is captured, wrapped
// as a HandlerError or PanicError, and passed to the emitter's error handler
// while the remaining handlers still run.
//
//	sessions := event.NewEmitter[SessionEvent]("session")
//	sub := sessions.Subscribe(func(ev SessionEvent) error {
//	    return tracker.handle(ev)
//	})
//	defer sub.Dispose()
//
//	sessions.Emit(ev)
//
// Subscriptions are disposable handles; Group collects several of them so a
// component can release everything it registered with one call.
package event

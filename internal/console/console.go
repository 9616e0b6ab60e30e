// Package console collects debuggee output for the console section.
package console

import (
	"strings"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/notify"
)

// Options configures a Console.
type Options struct {
	Capacity int
	Notifier notify.Notifier
	Logger   *logging.Logger
}

// Console keeps the most recent target output. Handlers run on the loop.
type Console struct {
	ring  *Ring
	notes notify.Notifier
	log   *logging.Logger

	subs    event.Group
	changed *event.Emitter[*Console]
}

// New creates an empty console.
func New(opts Options) *Console {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Func{}
	}
	return &Console{
		ring:    NewRing(opts.Capacity),
		notes:   opts.Notifier,
		log:     opts.Logger.WithComponent("console"),
		changed: event.NewEmitter[*Console]("console.changed"),
	}
}

// Attach subscribes to p's target and session events.
func (c *Console) Attach(p debugger.Proxy) {
	c.subs.Add(
		p.OnTargetEvent(notify.Reporting(c.notes, c.HandleTargetEvent)),
		p.OnSessionEvent(notify.Reporting(c.notes, c.HandleSessionEvent)),
	)
}

// OnChange registers fn to run after output is appended or cleared.
func (c *Console) OnChange(fn func(*Console)) event.Subscription {
	return c.changed.SubscribeFunc(fn)
}

// Dispose unsubscribes from the proxy.
func (c *Console) Dispose() {
	c.subs.Dispose()
}

// HandleTargetEvent appends output.
func (c *Console) HandleTargetEvent(ev debugger.TargetEvent) error {
	if ev.Type != debugger.TargetOutput {
		return debugger.Malformed("target", "unknown event type "+string(ev.Type))
	}
	if ev.Message == "" {
		return nil
	}
	c.ring.Write([]byte(ev.Message))
	c.changed.Emit(c)
	return nil
}

// HandleSessionEvent clears the console when a new session launches.
func (c *Console) HandleSessionEvent(ev debugger.SessionEvent) error {
	if ev.Type == debugger.SessionLaunched {
		c.Clear()
	}
	return nil
}

// Clear drops all output.
func (c *Console) Clear() {
	if c.ring.Len() == 0 {
		return
	}
	c.ring.Reset()
	c.changed.Emit(c)
	c.log.Debug("cleared")
}

// Text returns the buffered output.
func (c *Console) Text() string {
	return string(c.ring.Bytes())
}

// Lines returns the buffered output split into lines. After a wrap the
// first, partial line is dropped. A trailing newline does not produce an
// empty last line.
func (c *Console) Lines() []string {
	data := c.ring.Bytes()
	if len(data) == 0 {
		return nil
	}
	text := string(data)
	if c.ring.Wrapped() {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			return []string{text}
		}
		text = text[i+1:]
	}
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

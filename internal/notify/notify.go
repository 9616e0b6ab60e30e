// Package notify reports errors and warnings to the user.
package notify

import (
	"errors"
	"sync"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/logging"
)

// Notifier presents messages to the user. Calls never block.
type Notifier interface {
	ReportError(err error)
	ReportWarning(msg string)
}

// Func adapts a function pair to Notifier. Nil members are ignored.
type Func struct {
	Error   func(error)
	Warning func(string)
}

// ReportError calls f.Error.
func (f Func) ReportError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// ReportWarning calls f.Warning.
func (f Func) ReportWarning(msg string) {
	if f.Warning != nil {
		f.Warning(msg)
	}
}

// LogNotifier writes notifications to a logger. Desync errors are logged at
// warn level since the view recovers from them.
type LogNotifier struct {
	log *logging.Logger
}

// NewLogNotifier creates a notifier writing to log.
func NewLogNotifier(log *logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify")}
}

// ReportError logs err. Nil errors are dropped.
func (n *LogNotifier) ReportError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, debugger.ErrDesync) {
		n.log.Warn("%v", err)
		return
	}
	n.log.Error("%v", err)
}

// ReportWarning logs msg at warn level.
func (n *LogNotifier) ReportWarning(msg string) {
	n.log.Warn("%s", msg)
}

// Reporting wraps an event handler so its errors go to n instead of the
// emitter. Panics still propagate to the emitter's recovery.
func Reporting[E any](n Notifier, fn func(E) error) func(E) error {
	return func(ev E) error {
		if err := fn(ev); err != nil {
			n.ReportError(err)
		}
		return nil
	}
}

// Fanout delivers each notification to every notifier in order.
type Fanout []Notifier

// ReportError forwards err to each notifier.
func (f Fanout) ReportError(err error) {
	for _, n := range f {
		n.ReportError(err)
	}
}

// ReportWarning forwards msg to each notifier.
func (f Fanout) ReportWarning(msg string) {
	for _, n := range f {
		n.ReportWarning(msg)
	}
}

// Recorder keeps every notification. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	errors   []error
	warnings []string
}

// ReportError records err.
func (r *Recorder) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// ReportWarning records msg.
func (r *Recorder) ReportWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

// Errors returns the recorded errors.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// Warnings returns the recorded warnings.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// ErrorsMatching returns the recorded errors for which errors.Is(err, target).
func (r *Recorder) ErrorsMatching(target error) []error {
	var out []error
	for _, err := range r.Errors() {
		if errors.Is(err, target) {
			out = append(out, err)
		}
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = nil
	r.warnings = nil
}

package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
)

// ErrPullUnsupported is returned when the pull model is used with a backend
// that cannot list variables.
var ErrPullUnsupported = errors.New("debugger cannot list variables")

// Provider feeds a Tree from a proxy's events.
type Provider interface {
	Name() string
	Attach(p debugger.Proxy, t *Tree) ([]event.Subscription, error)
}

// NewProvider returns the provider for a model name ("pull" or "push").
func NewProvider(model string, notes notify.Notifier) (Provider, error) {
	switch model {
	case "pull":
		return &PullProvider{notes: notes}, nil
	case "push":
		return &PushProvider{notes: notes}, nil
	default:
		return nil, fmt.Errorf("unknown scope model %q", model)
	}
}

// PullProvider refetches the top-level list on every stop and frame change.
type PullProvider struct {
	notes notify.Notifier

	tree   *Tree
	lister debugger.VariableLister
	gen    uint64
}

// NewPullProvider creates a pull provider reporting failures to notes.
func NewPullProvider(notes notify.Notifier) *PullProvider {
	return &PullProvider{notes: notes}
}

// Name returns "pull".
func (pp *PullProvider) Name() string { return "pull" }

// Attach subscribes to stops and frame changes. It fails with
// ErrPullUnsupported when p does not implement debugger.VariableLister.
func (pp *PullProvider) Attach(p debugger.Proxy, t *Tree) ([]event.Subscription, error) {
	lister, ok := p.(debugger.VariableLister)
	if !ok {
		return nil, ErrPullUnsupported
	}
	if pp.notes == nil {
		pp.notes = t.notes
	}
	pp.tree = t
	pp.lister = lister
	return []event.Subscription{
		p.OnSessionEvent(notify.Reporting(pp.notes, pp.handleSession)),
		p.OnFrameChange(notify.Reporting(pp.notes, pp.handleFrameChange)),
	}, nil
}

func (pp *PullProvider) handleSession(ev debugger.SessionEvent) error {
	switch ev.Type {
	case debugger.SessionSuspended:
		pp.fetch()
	case debugger.SessionResumed, debugger.SessionTerminated:
		pp.gen++
		pp.tree.Clear()
	}
	return nil
}

// Refresh refetches the top-level list for the current frame.
func (pp *PullProvider) Refresh() {
	pp.fetch()
}

func (pp *PullProvider) handleFrameChange(debugger.FrameChangeEvent) error {
	pp.fetch()
	return nil
}

func (pp *PullProvider) fetch() {
	pp.gen++
	gen := pp.gen
	loop.Await(pp.tree.loop, pp.tree.Context(), func(ctx context.Context) ([]debugger.Variable, error) {
		return pp.lister.VariableList(ctx)
	}, func(vars []debugger.Variable, err error) {
		if gen != pp.gen || pp.tree.ctx.Err() != nil {
			return
		}
		if err != nil {
			pp.notes.ReportError(debugger.BackendQuery("scope.refresh", err))
			return
		}
		pp.tree.SetRoots(vars)
	})
}

// PushProvider applies variable events as they arrive.
type PushProvider struct {
	notes notify.Notifier
	tree  *Tree
}

// NewPushProvider creates a push provider reporting failures to notes.
func NewPushProvider(notes notify.Notifier) *PushProvider {
	return &PushProvider{notes: notes}
}

// Name returns "push".
func (pp *PushProvider) Name() string { return "push" }

// Attach subscribes to variable events and clears t when the session ends.
func (pp *PushProvider) Attach(p debugger.Proxy, t *Tree) ([]event.Subscription, error) {
	if pp.notes == nil {
		pp.notes = t.notes
	}
	pp.tree = t
	return []event.Subscription{
		p.OnVariableEvent(notify.Reporting(pp.notes, pp.handleVariable)),
		p.OnSessionEvent(notify.Reporting(pp.notes, pp.handleSession)),
	}, nil
}

func (pp *PushProvider) handleVariable(ev debugger.VariableEvent) error {
	switch ev.Type {
	case debugger.VariableEnteredScope:
		pp.tree.AppendRoot(ev.Variable)
	case debugger.VariableLeftScope:
		return pp.tree.RemoveRoot(ev.Variable.ID)
	case debugger.VariableUpdated:
		pp.tree.UpdateValue(ev.Variable)
	default:
		return debugger.Malformed("variable", fmt.Sprintf("unknown event type %q", ev.Type))
	}
	return nil
}

func (pp *PushProvider) handleSession(ev debugger.SessionEvent) error {
	if ev.Type == debugger.SessionTerminated {
		pp.tree.Clear()
	}
	return nil
}

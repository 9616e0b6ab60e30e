// Package scope maintains the lazily expanded variable tree.
//
// The tree is fed by a Provider. PullProvider refetches the whole top-level
// list whenever the target stops or the selected frame changes; PushProvider
// applies entered-scope, left-scope and updated events one variable at a
// time. Children are fetched on first expansion and cached until the node is
// dropped.
package scope

import (
	"context"
	"strings"

	"github.com/dshills/dbgview/internal/debugger"
	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/notify"
)

// Path addresses a node by the variable IDs from its root down.
type Path []string

// String joins the IDs with "/".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Node is one variable in the tree.
type Node struct {
	Variable debugger.Variable

	Expanded bool
	Loading  bool
	// Loaded is set once children were fetched; they survive collapse.
	Loaded   bool
	Children []*Node
}

// Options configures a Tree.
type Options struct {
	Loop     *loop.Loop
	Notifier notify.Notifier
	Logger   *logging.Logger
}

// Tree is the variable tree. All methods run on the loop.
type Tree struct {
	loop  *loop.Loop
	notes notify.Notifier
	log   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	subs   event.Group
	proxy  debugger.Proxy

	roots   []*Node
	changed *event.Emitter[*Tree]
}

// New creates an empty tree.
func New(opts Options) *Tree {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Func{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tree{
		loop:    opts.Loop,
		notes:   opts.Notifier,
		log:     opts.Logger.WithComponent("scope"),
		ctx:     ctx,
		cancel:  cancel,
		changed: event.NewEmitter[*Tree]("scope.changed"),
	}
}

// Attach connects the tree to p through provider.
func (t *Tree) Attach(p debugger.Proxy, provider Provider) error {
	subs, err := provider.Attach(p, t)
	if err != nil {
		return err
	}
	t.proxy = p
	t.subs.Add(subs...)
	t.log.Debug("attached %s provider", provider.Name())
	return nil
}

// OnChange registers fn to run after every change.
func (t *Tree) OnChange(fn func(*Tree)) event.Subscription {
	return t.changed.SubscribeFunc(fn)
}

// Dispose unsubscribes and drops pending fetches.
func (t *Tree) Dispose() {
	t.subs.Dispose()
	t.cancel()
}

// Context is cancelled by Dispose. Providers use it for their fetches.
func (t *Tree) Context() context.Context {
	return t.ctx
}

// Roots returns the top-level nodes.
func (t *Tree) Roots() []*Node {
	return t.roots
}

// Len returns the number of top-level nodes.
func (t *Tree) Len() int {
	return len(t.roots)
}

// Find returns the node at path, or nil.
func (t *Tree) Find(path Path) *Node {
	nodes := t.roots
	var found *Node
	for _, id := range path {
		found = nil
		for _, n := range nodes {
			if n.Variable.ID == id {
				found = n
				break
			}
		}
		if found == nil {
			return nil
		}
		nodes = found.Children
	}
	return found
}

// SetRoots replaces the whole tree.
func (t *Tree) SetRoots(vars []debugger.Variable) {
	t.roots = newNodes(vars)
	t.changed.Emit(t)
}

// AppendRoot adds a top-level node.
func (t *Tree) AppendRoot(v debugger.Variable) {
	t.roots = append(t.roots, &Node{Variable: v})
	t.changed.Emit(t)
}

// RemoveRoot drops the top-level node with id.
func (t *Tree) RemoveRoot(id string) error {
	for i, n := range t.roots {
		if n.Variable.ID == id {
			t.roots = append(t.roots[:i:i], t.roots[i+1:]...)
			t.changed.Emit(t)
			return nil
		}
	}
	return debugger.Desync("scope.left-scope", "no variable with id %q", id)
}

// UpdateValue refreshes the value and type of every node with v's ID and
// returns how many were updated. Structure is left alone.
func (t *Tree) UpdateValue(v debugger.Variable) int {
	n := 0
	walk(t.roots, func(node *Node) {
		if node.Variable.ID == v.ID {
			node.Variable.Value = v.Value
			if v.Type != "" {
				node.Variable.Type = v.Type
			}
			n++
		}
	})
	if n > 0 {
		t.changed.Emit(t)
	}
	return n
}

// Clear removes every node.
func (t *Tree) Clear() {
	if t.roots == nil {
		return
	}
	t.roots = nil
	t.changed.Emit(t)
}

// Expand shows the children of the node at path, fetching them on first use.
func (t *Tree) Expand(path Path) error {
	node := t.Find(path)
	if node == nil {
		return debugger.Desync("scope.expand", "no variable at %s", path)
	}
	if !node.Variable.HasChildren {
		return nil
	}
	node.Expanded = true
	if node.Loaded || node.Loading {
		t.changed.Emit(t)
		return nil
	}
	if t.proxy == nil {
		return debugger.Desync("scope.expand", "no debugger attached")
	}

	node.Loading = true
	t.changed.Emit(t)

	v := node.Variable
	loop.Await(t.loop, t.ctx, func(ctx context.Context) ([]debugger.Variable, error) {
		return t.proxy.VariableChildren(ctx, v)
	}, func(children []debugger.Variable, err error) {
		if t.ctx.Err() != nil {
			return
		}
		if t.Find(path) != node {
			t.log.Debug("discarding children of dropped variable %s", path)
			return
		}
		node.Loading = false
		if err != nil {
			node.Expanded = false
			t.notes.ReportError(debugger.BackendQuery("scope.expand", err))
			t.changed.Emit(t)
			return
		}
		node.Children = newNodes(children)
		node.Loaded = true
		t.changed.Emit(t)
	})
	return nil
}

// Collapse hides the children of the node at path. Fetched children are kept.
func (t *Tree) Collapse(path Path) error {
	node := t.Find(path)
	if node == nil {
		return debugger.Desync("scope.collapse", "no variable at %s", path)
	}
	if node.Expanded {
		node.Expanded = false
		t.changed.Emit(t)
	}
	return nil
}

func newNodes(vars []debugger.Variable) []*Node {
	nodes := make([]*Node, len(vars))
	for i, v := range vars {
		nodes[i] = &Node{Variable: v}
	}
	return nodes
}

func walk(nodes []*Node, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		walk(n.Children, fn)
	}
}

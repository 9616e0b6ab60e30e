package scope

// NodeView is a renderable variable node. Children are included only for
// expanded nodes.
type NodeView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Value       string     `json:"value,omitempty"`
	HasValue    bool       `json:"hasValue"`
	Type        string     `json:"type,omitempty"`
	HasChildren bool       `json:"hasChildren"`
	Expanded    bool       `json:"expanded"`
	Loading     bool       `json:"loading,omitempty"`
	Children    []NodeView `json:"children,omitempty"`
}

// View returns a copy of the visible tree.
func (t *Tree) View() []NodeView {
	return viewNodes(t.roots)
}

func viewNodes(nodes []*Node) []NodeView {
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		text, ok := n.Variable.Value.Text()
		v := NodeView{
			ID:          n.Variable.ID,
			Name:        n.Variable.Name,
			Value:       text,
			HasValue:    ok,
			Type:        n.Variable.Type,
			HasChildren: n.Variable.HasChildren,
			Expanded:    n.Expanded,
			Loading:     n.Loading,
		}
		if n.Expanded && n.Loaded {
			v.Children = viewNodes(n.Children)
		}
		out = append(out, v)
	}
	return out
}

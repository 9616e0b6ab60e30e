package breakpoints

import "github.com/dshills/dbgview/internal/debugger"

// View is a renderable copy of the tree.
type View struct {
	Projects    []ProjectView `json:"projects"`
	Placeholder bool          `json:"placeholder"`
}

// ProjectView is a project node.
type ProjectView struct {
	Root     string     `json:"root,omitempty"`
	Name     string     `json:"name"`
	External bool       `json:"external,omitempty"`
	Files    []FileView `json:"files"`
}

// FileView is a file node.
type FileView struct {
	Path    string    `json:"path"`
	AbsPath string    `json:"absPath"`
	Rows    []RowView `json:"rows"`
}

// RowView is one breakpoint row.
type RowView struct {
	Location  debugger.Location `json:"location"`
	Line      int               `json:"line"`
	Text      string            `json:"text"`
	Enabled   bool              `json:"enabled"`
	Condition string            `json:"condition,omitempty"`
}

// View returns a copy of the tree for rendering.
func (s *Synchronizer) View() View {
	return s.tree.View()
}

// View returns a copy of the tree for rendering.
func (t *Tree) View() View {
	v := View{Projects: []ProjectView{}, Placeholder: t.ShowPlaceholder()}
	for _, p := range t.Projects() {
		pv := ProjectView{Root: p.Key.Root, Name: p.Name, External: p.Key.External, Files: make([]FileView, 0, len(p.Files))}
		for _, f := range p.Files {
			fv := FileView{Path: f.Key.Path, AbsPath: f.AbsPath, Rows: make([]RowView, 0, len(f.Rows))}
			for _, r := range f.Rows {
				fv.Rows = append(fv.Rows, RowView{
					Location:  r.Breakpoint.Location,
					Line:      r.Line(),
					Text:      r.Text,
					Enabled:   r.Breakpoint.Enabled,
					Condition: r.Breakpoint.Condition,
				})
			}
			pv.Files = append(pv.Files, fv)
		}
		v.Projects = append(v.Projects, pv)
	}
	return v
}

package breakpoints

import (
	"sort"

	"github.com/dshills/dbgview/internal/debugger"
)

// ProjectKey identifies a project node. External groups files outside every
// project root; Root is empty for it.
type ProjectKey struct {
	Root     string
	External bool
}

// FileKey identifies a file node. Path is relative to the project root, or
// absolute for external files.
type FileKey struct {
	Project ProjectKey
	Path    string
}

// Row is one breakpoint in the tree.
type Row struct {
	Breakpoint *debugger.Breakpoint

	// Text is the source line, empty until the buffer has been read.
	Text       string
	TextLoaded bool
}

// Line returns the 1-based line shown for the row.
func (r *Row) Line() int {
	return r.Breakpoint.DisplayedLine()
}

// FileNode groups the rows of one file, ordered by displayed line.
type FileNode struct {
	Key     FileKey
	AbsPath string
	Rows    []*Row
}

// ProjectNode groups the files of one project, ordered by path.
type ProjectNode struct {
	Key   ProjectKey
	Name  string
	Files []*FileNode
}

// Tree is the project, file and row hierarchy. Empty file and project nodes
// are never kept.
type Tree struct {
	projects map[ProjectKey]*ProjectNode
	files    map[FileKey]*FileNode
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		projects: make(map[ProjectKey]*ProjectNode),
		files:    make(map[FileKey]*FileNode),
	}
}

// Insert adds row under the given project and file, creating them as needed.
// A row for the same location is replaced rather than duplicated.
func (t *Tree) Insert(pk ProjectKey, name string, fk FileKey, absPath string, row *Row) {
	p, ok := t.projects[pk]
	if !ok {
		p = &ProjectNode{Key: pk, Name: name}
		t.projects[pk] = p
	}

	f, ok := t.files[fk]
	if !ok {
		f = &FileNode{Key: fk, AbsPath: absPath}
		t.files[fk] = f
		i := sort.Search(len(p.Files), func(i int) bool { return p.Files[i].Key.Path >= fk.Path })
		p.Files = append(p.Files, nil)
		copy(p.Files[i+1:], p.Files[i:])
		p.Files[i] = f
	}

	for i, r := range f.Rows {
		if r.Breakpoint.Location == row.Breakpoint.Location {
			f.Rows = append(f.Rows[:i:i], f.Rows[i+1:]...)
			break
		}
	}
	f.insertSorted(row)
}

// Find returns the row for loc in the file, or nil.
func (t *Tree) Find(fk FileKey, loc debugger.Location) *Row {
	f, ok := t.files[fk]
	if !ok {
		return nil
	}
	for _, r := range f.Rows {
		if r.Breakpoint.Location == loc {
			return r
		}
	}
	return nil
}

// Remove deletes the row for loc shown at line in the file and prunes empty
// nodes. Rows on the same line belonging to other locations are left alone.
func (t *Tree) Remove(fk FileKey, line int, loc debugger.Location) (*Row, error) {
	const op = "breakpoint.removed"

	p, ok := t.projects[fk.Project]
	if !ok {
		return nil, debugger.Desync(op, "no project node for %s", projectLabel(fk.Project))
	}
	f, ok := t.files[fk]
	if !ok {
		return nil, debugger.Desync(op, "no file node for %s in %s", fk.Path, projectLabel(fk.Project))
	}

	idx := -1
	for i, r := range f.Rows {
		if r.Line() == line && r.Breakpoint.Location == loc {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, debugger.Desync(op, "no row for line %d in %s", line, fk.Path)
	}

	row := f.Rows[idx]
	f.Rows = append(f.Rows[:idx:idx], f.Rows[idx+1:]...)

	if len(f.Rows) == 0 {
		delete(t.files, fk)
		for i, pf := range p.Files {
			if pf == f {
				p.Files = append(p.Files[:i:i], p.Files[i+1:]...)
				break
			}
		}
	}
	if len(p.Files) == 0 {
		delete(t.projects, fk.Project)
	}
	return row, nil
}

// Resort re-establishes line order in a file after a row's line changed.
func (t *Tree) Resort(fk FileKey) {
	f, ok := t.files[fk]
	if !ok {
		return
	}
	sort.SliceStable(f.Rows, func(i, j int) bool { return rowLess(f.Rows[i], f.Rows[j]) })
}

// RowCount returns the number of rows.
func (t *Tree) RowCount() int {
	n := 0
	for _, f := range t.files {
		n += len(f.Rows)
	}
	return n
}

// ShowPlaceholder reports whether the empty-tree placeholder is shown.
func (t *Tree) ShowPlaceholder() bool {
	return t.RowCount() == 0
}

// Projects returns the project nodes: project roots by path, then external.
func (t *Tree) Projects() []*ProjectNode {
	out := make([]*ProjectNode, 0, len(t.projects))
	for _, p := range t.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.External != b.External {
			return !a.External
		}
		return a.Root < b.Root
	})
	return out
}

// Clear removes everything.
func (t *Tree) Clear() {
	t.projects = make(map[ProjectKey]*ProjectNode)
	t.files = make(map[FileKey]*FileNode)
}

func (f *FileNode) insertSorted(row *Row) {
	i := sort.Search(len(f.Rows), func(i int) bool { return rowLess(row, f.Rows[i]) })
	f.Rows = append(f.Rows, nil)
	copy(f.Rows[i+1:], f.Rows[i:])
	f.Rows[i] = row
}

func rowLess(a, b *Row) bool {
	if a.Line() != b.Line() {
		return a.Line() < b.Line()
	}
	return a.Breakpoint.Location.BufferRow < b.Breakpoint.Location.BufferRow
}

func projectLabel(pk ProjectKey) string {
	if pk.External {
		return "external files"
	}
	return pk.Root
}

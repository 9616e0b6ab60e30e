package breakpoints

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/dshills/dbgview/internal/debugger"
)

func lineRow(path string, row int) *Row {
	return &Row{Breakpoint: debugger.NewBreakpoint(debugger.LineLocation(path, row))}
}

var projA = ProjectKey{Root: "/work/app"}

func TestTree_InsertOrdersRows(t *testing.T) {
	tree := NewTree()
	fk := FileKey{Project: projA, Path: "main.go"}
	for _, row := range []int{9, 2, 5} {
		tree.Insert(projA, "app", fk, "/work/app/main.go", lineRow("/work/app/main.go", row))
	}
	tree.Insert(projA, "app", FileKey{Project: projA, Path: "a.go"}, "/work/app/a.go", lineRow("/work/app/a.go", 0))

	projects := tree.Projects()
	if len(projects) != 1 || len(projects[0].Files) != 2 {
		t.Fatalf("unexpected shape: %+v", tree.View())
	}
	if projects[0].Files[0].Key.Path != "a.go" {
		t.Errorf("files not sorted: %s first", projects[0].Files[0].Key.Path)
	}
	var lines []int
	for _, r := range projects[0].Files[1].Rows {
		lines = append(lines, r.Line())
	}
	if fmt.Sprint(lines) != "[3 6 10]" {
		t.Errorf("lines = %v", lines)
	}
}

func TestTree_DuplicateInsertReplaces(t *testing.T) {
	tree := NewTree()
	fk := FileKey{Project: projA, Path: "main.go"}
	tree.Insert(projA, "app", fk, "/work/app/main.go", lineRow("/work/app/main.go", 1))
	tree.Insert(projA, "app", fk, "/work/app/main.go", lineRow("/work/app/main.go", 1))
	if tree.RowCount() != 1 {
		t.Errorf("RowCount = %d, want 1", tree.RowCount())
	}
}

func TestTree_RemoveErrors(t *testing.T) {
	tree := NewTree()
	fk := FileKey{Project: projA, Path: "main.go"}
	loc := debugger.LineLocation("/work/app/main.go", 4)
	tree.Insert(projA, "app", fk, "/work/app/main.go", &Row{Breakpoint: debugger.NewBreakpoint(loc)})

	tests := []struct {
		name string
		fk   FileKey
		line int
	}{
		{"missing project", FileKey{Project: ProjectKey{Root: "/other"}, Path: "main.go"}, 5},
		{"missing file", FileKey{Project: projA, Path: "other.go"}, 5},
		{"missing row", fk, 6},
	}
	other := debugger.LineLocation("/work/app/main.go", 2)
	if _, err := tree.Remove(fk, 5, other); !errors.Is(err, debugger.ErrDesync) {
		t.Errorf("removing another location on the same line: expected desync, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tree.Remove(tt.fk, tt.line, loc); !errors.Is(err, debugger.ErrDesync) {
				t.Errorf("expected desync, got %v", err)
			}
		})
	}

	if _, err := tree.Remove(fk, 5, loc); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !tree.ShowPlaceholder() || len(tree.Projects()) != 0 {
		t.Error("tree not empty after removing last row")
	}
}

// Random insert/remove sequences over distinct locations leave exactly one
// row per live breakpoint and never an empty node.
func TestTree_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	projects := []ProjectKey{projA, {Root: "/work/lib"}, {External: true}}
	files := []string{"a.go", "b.go", "c.go"}

	for iter := 0; iter < 50; iter++ {
		tree := NewTree()
		live := map[debugger.Location]FileKey{}

		for step := 0; step < 200; step++ {
			pk := projects[rng.Intn(len(projects))]
			fk := FileKey{Project: pk, Path: files[rng.Intn(len(files))]}
			abs := pk.Root + "/" + fk.Path
			loc := debugger.LineLocation(abs, rng.Intn(8))

			if _, ok := live[loc]; ok {
				if _, err := tree.Remove(fk, loc.BufferRow+1, loc); err != nil {
					t.Fatalf("iter %d step %d: Remove: %v", iter, step, err)
				}
				delete(live, loc)
			} else {
				tree.Insert(pk, "x", fk, abs, &Row{Breakpoint: debugger.NewBreakpoint(loc)})
				live[loc] = fk
			}

			if tree.RowCount() != len(live) {
				t.Fatalf("iter %d step %d: RowCount = %d, live = %d", iter, step, tree.RowCount(), len(live))
			}
			for loc, fk := range live {
				if tree.Find(fk, loc) == nil {
					t.Fatalf("iter %d step %d: %s missing", iter, step, loc)
				}
			}
			for _, p := range tree.Projects() {
				if len(p.Files) == 0 {
					t.Fatalf("empty project node %v", p.Key)
				}
				for _, f := range p.Files {
					if len(f.Rows) == 0 {
						t.Fatalf("empty file node %v", f.Key)
					}
					if f.Key.Project != p.Key {
						t.Fatalf("file %v grouped under %v", f.Key, p.Key)
					}
				}
			}
		}
	}
}

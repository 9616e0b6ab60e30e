package project

import (
	"errors"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Errors returned by project operations.
var (
	// ErrRootExists indicates the root is already registered.
	ErrRootExists = errors.New("project root already exists")

	// ErrRootNotFound indicates the root is not registered.
	ErrRootNotFound = errors.New("project root not found")

	// ErrInvalidPath indicates a path or URI that cannot be resolved.
	ErrInvalidPath = errors.New("invalid path")
)

// Relativizer maps an absolute path to its project.
type Relativizer interface {
	// Relativize returns the containing root and the path relative to it.
	// For a path outside every root, inProject is false, root is empty and
	// rel is the cleaned input path.
	Relativize(path string) (root, rel string, inProject bool)
}

// Roots is a set of project root folders. Safe for concurrent use.
type Roots struct {
	mu    sync.RWMutex
	roots []string
}

var _ Relativizer = (*Roots)(nil)

// NewRoots creates a root set. Invalid or duplicate paths are skipped.
func NewRoots(paths ...string) *Roots {
	r := &Roots{}
	for _, p := range paths {
		_ = r.Add(p)
	}
	return r
}

// Add registers a root folder.
func (r *Roots) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ErrInvalidPath
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roots {
		if existing == abs {
			return ErrRootExists
		}
	}
	r.roots = append(r.roots, abs)
	return nil
}

// Remove unregisters a root folder.
func (r *Roots) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ErrInvalidPath
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.roots {
		if existing == abs {
			r.roots = append(r.roots[:i:i], r.roots[i+1:]...)
			return nil
		}
	}
	return ErrRootNotFound
}

// List returns the roots in registration order.
func (r *Roots) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.roots...)
}

// Relativize resolves path against the innermost containing root.
func (r *Roots) Relativize(path string) (string, string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", filepath.Clean(path), false
	}

	r.mu.RLock()
	candidates := make([]string, 0, len(r.roots))
	for _, root := range r.roots {
		if isSubPath(root, abs) {
			candidates = append(candidates, root)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return "", abs, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	root := candidates[0]
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", abs, false
	}
	return root, filepath.ToSlash(rel), true
}

// Name returns the display name of a root.
func Name(root string) string {
	if root == "" {
		return ""
	}
	return filepath.Base(root)
}

// isSubPath reports whether child is parent or inside it.
func isSubPath(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if child == parent {
		return true
	}
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}

// PathToURI converts a file path to a file:// URI.
func PathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

// URIToPath converts a file:// URI to a file path.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", ErrInvalidPath
	}
	path := filepath.FromSlash(u.Path)
	// Windows drive letters come through as /C:/...
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return path, nil
}

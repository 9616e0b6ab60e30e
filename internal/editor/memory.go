package editor

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// FileSystem supplies buffer contents.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem reads from disk.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MapFileSystem serves files from memory, keyed by absolute path.
type MapFileSystem map[string]string

func (m MapFileSystem) ReadFile(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return []byte(s), nil
}

// OpenHook runs before a buffer is read. It may block to simulate a slow open.
type OpenHook func(ctx context.Context, path string) error

// MemoryOption configures a Memory workspace.
type MemoryOption func(*Memory)

// WithOpenHook installs hook.
func WithOpenHook(hook OpenHook) MemoryOption {
	return func(m *Memory) {
		m.hook = hook
	}
}

// WithSignClasses maps decoration classes to gutter signs, replacing the
// defaults.
func WithSignClasses(classes map[string]SignType) MemoryOption {
	return func(m *Memory) {
		m.signClasses = classes
	}
}

// Memory is a Workspace keeping buffers in memory. It is the editor used by
// the standalone server and by tests.
type Memory struct {
	fs   FileSystem
	hook OpenHook

	mu          sync.Mutex
	buffers     map[string]*MemoryBuffer
	opens       map[string]int
	signClasses map[string]SignType
	scrolled    *Location
}

// Location is a path and point.
type Location struct {
	Path  string `json:"path"`
	Point Point  `json:"point"`
}

// NewMemory creates an in-memory workspace over fs.
func NewMemory(fs FileSystem, opts ...MemoryOption) *Memory {
	m := &Memory{
		fs:          fs,
		buffers:     make(map[string]*MemoryBuffer),
		opens:       make(map[string]int),
		signClasses: DefaultSignClasses(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenBuffer returns the buffer for path, reading it on first open.
func (m *Memory) OpenBuffer(ctx context.Context, path string) (Buffer, error) {
	m.mu.Lock()
	m.opens[path]++
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, path); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if b, ok := m.buffers[path]; ok {
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	data, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open buffer %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buffers[path]; ok {
		return b, nil
	}
	b := &MemoryBuffer{ws: m, path: path, lines: splitLines(string(data))}
	m.buffers[path] = b
	return b, nil
}

// Opens returns how often path was requested.
func (m *Memory) Opens(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[path]
}

// Buffer returns an already opened buffer.
func (m *Memory) Buffer(path string) (*MemoryBuffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[path]
	return b, ok
}

// LastScroll returns the last ScrollTo target across all buffers.
func (m *Memory) LastScroll() (Location, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scrolled == nil {
		return Location{}, false
	}
	return *m.scrolled, true
}

// LiveMarkers returns the number of live markers over all buffers.
func (m *Memory) LiveMarkers() int {
	m.mu.Lock()
	buffers := make([]*MemoryBuffer, 0, len(m.buffers))
	for _, b := range m.buffers {
		buffers = append(buffers, b)
	}
	m.mu.Unlock()

	n := 0
	for _, b := range buffers {
		n += len(b.Markers())
	}
	return n
}

// MarkersWithClass returns live markers of every buffer decorated with class.
func (m *Memory) MarkersWithClass(class string) []*MemoryMarker {
	m.mu.Lock()
	paths := make([]string, 0, len(m.buffers))
	for p := range m.buffers {
		paths = append(paths, p)
	}
	m.mu.Unlock()
	sort.Strings(paths)

	var out []*MemoryMarker
	for _, p := range paths {
		b, _ := m.Buffer(p)
		for _, mk := range b.Markers() {
			if mk.HasClass(class) {
				out = append(out, mk)
			}
		}
	}
	return out
}

func (m *Memory) recordScroll(path string, p Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolled = &Location{Path: path, Point: p}
}

// MemoryBuffer is a read-only in-memory buffer.
type MemoryBuffer struct {
	ws    *Memory
	path  string
	lines []string

	mu      sync.Mutex
	markers []*MemoryMarker
	nextID  int
}

var _ Buffer = (*MemoryBuffer)(nil)

func (b *MemoryBuffer) Path() string {
	return b.path
}

func (b *MemoryBuffer) LineText(row int) (string, bool) {
	if row < 0 || row >= len(b.lines) {
		return "", false
	}
	return b.lines[row], true
}

// LineCount returns the number of lines.
func (b *MemoryBuffer) LineCount() int {
	return len(b.lines)
}

func (b *MemoryBuffer) MarkRange(r Range, opts MarkOptions) Marker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	mk := &MemoryMarker{id: b.nextID, buf: b, rng: r, invalidate: opts.Invalidate}
	b.markers = append(b.markers, mk)
	return mk
}

// DecorateMarker adds d to m. Markers from another buffer are ignored.
func (b *MemoryBuffer) DecorateMarker(m Marker, d Decoration) {
	mk, ok := m.(*MemoryMarker)
	if !ok || mk.buf != b {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	mk.decorations = append(mk.decorations, d)
}

func (b *MemoryBuffer) ScrollTo(p Point) {
	b.ws.recordScroll(b.path, p)
}

// Markers returns the live markers in creation order.
func (b *MemoryBuffer) Markers() []*MemoryMarker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MemoryMarker(nil), b.markers...)
}

func (b *MemoryBuffer) remove(mk *MemoryMarker) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.markers {
		if m == mk {
			b.markers = append(b.markers[:i:i], b.markers[i+1:]...)
			return true
		}
	}
	return false
}

// MemoryMarker is a marker in a MemoryBuffer.
type MemoryMarker struct {
	id         int
	buf        *MemoryBuffer
	rng        Range
	invalidate Invalidate

	decorations []Decoration
	destroyed   bool
}

var _ Marker = (*MemoryMarker)(nil)

func (m *MemoryMarker) Range() Range {
	return m.rng
}

// Invalidate returns the invalidation strategy the marker was created with.
func (m *MemoryMarker) Invalidate() Invalidate {
	return m.invalidate
}

// Destroy removes the marker and its decorations. Destroying twice is a no-op.
func (m *MemoryMarker) Destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	m.buf.remove(m)
}

func (m *MemoryMarker) IsDestroyed() bool {
	return m.destroyed
}

// Decorations returns the decorations applied to the marker.
func (m *MemoryMarker) Decorations() []Decoration {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	return append([]Decoration(nil), m.decorations...)
}

// HasClass reports whether any decoration uses class.
func (m *MemoryMarker) HasClass(class string) bool {
	for _, d := range m.Decorations() {
		if d.Class == class {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

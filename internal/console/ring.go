package console

import "sync"

// DefaultCapacity bounds the console scrollback.
const DefaultCapacity = 64 * 1024

// Ring is a circular byte buffer. The oldest bytes are overwritten once it is
// full. Safe for concurrent use.
type Ring struct {
	mu   sync.Mutex
	buf  []byte
	pos  int  // next write position
	full bool // wrapped at least once
}

// NewRing creates a ring holding at most size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultCapacity
	}
	return &Ring{buf: make([]byte, size)}
}

// Write appends data. It never fails.
func (r *Ring) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(data)
	if len(data) > len(r.buf) {
		data = data[len(data)-len(r.buf):]
	}
	for len(data) > 0 {
		c := copy(r.buf[r.pos:], data)
		data = data[c:]
		r.pos += c
		if r.pos >= len(r.buf) {
			r.pos = 0
			r.full = true
		}
	}
	return n, nil
}

// Bytes returns the contents oldest first, starting on a character boundary.
// The caller owns the returned slice.
func (r *Ring) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]byte, r.pos)
		copy(out, r.buf[:r.pos])
		return out
	}
	out := make([]byte, len(r.buf))
	n := copy(out, r.buf[r.pos:])
	copy(out[n:], r.buf[:r.pos])
	return skipContinuationBytes(out)
}

// Wrapped reports whether old output has been overwritten.
func (r *Ring) Wrapped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// Reset drops everything.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.full = false
}

// skipContinuationBytes drops UTF-8 continuation bytes (10xxxxxx) left at
// the front when a wrap split a multi-byte character.
func skipContinuationBytes(data []byte) []byte {
	i := 0
	for i < len(data) && i < 4 && data[i]&0xC0 == 0x80 {
		i++
	}
	return data[i:]
}

package runner

import "sync"

// TailBuffer is an io.Writer that keeps only the last size bytes written to it.
// The tool's stderr can be arbitrarily long; only its end is useful for diagnosis.
type TailBuffer struct {
	mu        sync.Mutex
	b         []byte
	size      int
	truncated bool
}

func NewTailBuffer(n int) *TailBuffer {
	if n <= 0 {
		n = 64 << 10
	}
	return &TailBuffer{b: make([]byte, 0, n), size: n}
}

func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.size {
		t.truncated = t.truncated || len(p) > t.size || len(t.b) > 0
		t.b = append(t.b[:0], p[len(p)-t.size:]...)
		return len(p), nil
	}
	if over := len(t.b) + len(p) - t.size; over > 0 {
		t.truncated = true
		t.b = append(t.b[:0], t.b[over:]...)
	}
	t.b = append(t.b, p...)
	return len(p), nil
}

func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.b)
}

// Truncated reports whether earlier output was dropped.
func (t *TailBuffer) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}

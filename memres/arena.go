package memres

import (
	"sync"
	"unsafe"
)

// Arena is a bump allocator over a caller-supplied fixed buffer — the
// stand-in for a "new/delete-backed" fixed-region resource. It is what
// rtos.MemoryPool uses by default, so the pool's block storage comes from
// one fixed buffer rather than one Go allocation per block. (The pool's
// small per-call bookkeeping records are still ordinary Go allocations.)
type Arena struct {
	mu     sync.Mutex
	buf    []byte
	offset int
}

// NewArena wraps buf as a bump-allocated resource. buf's capacity is the
// arena's total budget; Reset rewinds the bump pointer to the start.
func NewArena(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Allocate returns the next bytes bytes of the arena aligned to align, or
// ErrAllocFailed if the arena is exhausted.
func (a *Arena) Allocate(bytes, align int) (unsafe.Pointer, error) {
	if bytes <= 0 {
		return nil, ErrAllocFailed
	}
	if align <= 0 {
		align = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	base := uintptr(unsafe.Pointer(&a.buf[0]))
	start := base + uintptr(a.offset)
	aligned := (start + uintptr(align) - 1) &^ (uintptr(align) - 1)
	end := aligned + uintptr(bytes)
	if end > base+uintptr(len(a.buf)) {
		return nil, ErrAllocFailed
	}

	a.offset = int(end - base)
	return unsafe.Pointer(aligned), nil
}

// Deallocate is a no-op: the arena only reclaims space on Reset.
func (a *Arena) Deallocate(unsafe.Pointer, int, int) {}

// IsEqual reports whether other is the same Arena instance.
func (a *Arena) IsEqual(other Resource) bool {
	o, ok := other.(*Arena)
	return ok && o == a
}

// MaxSize returns the arena's total capacity.
func (a *Arena) MaxSize() int { return len(a.buf) }

// Reset rewinds the bump pointer, invalidating every outstanding allocation.
func (a *Arena) Reset() {
	a.mu.Lock()
	a.offset = 0
	a.mu.Unlock()
}

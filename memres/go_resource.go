package memres

import (
	"errors"
	"unsafe"
)

// ErrAllocFailed is returned when a Resource cannot satisfy a request.
var ErrAllocFailed = errors.New("memres: allocation failed")

type goResource struct{}

var sharedGoResource = &goResource{}

// NewGo returns a Resource backed by the Go runtime allocator — the stand-in
// for the original's malloc-backed default resource. Deallocate is a no-op;
// the garbage collector reclaims the block once unreachable.
func NewGo() Resource { return sharedGoResource }

func (r *goResource) Allocate(bytes, align int) (unsafe.Pointer, error) {
	if bytes <= 0 {
		return nil, ErrAllocFailed
	}
	if align <= 0 {
		align = 1
	}
	buf := make([]byte, bytes+align)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (addr + uintptr(align) - 1) &^ (uintptr(align) - 1)
	return unsafe.Pointer(aligned), nil
}

func (r *goResource) Deallocate(unsafe.Pointer, int, int) {}

func (r *goResource) IsEqual(other Resource) bool {
	o, ok := other.(*goResource)
	return ok && o == r
}

func (r *goResource) MaxSize() int { return 0 }

// Package memres defines the memory-resource contract the kernel's pool and
// optional dynamic allocations are built on, and ships three trivial
// instances of it. rtos.MemoryPool obtains its block storage only through
// this narrow interface, matching spec.md §1/§6's "heap allocators are
// external collaborators" framing.
package memres

import "unsafe"

// Resource is a virtual-dispatch-free stand-in for the original's
// memory_resource base class: allocate, deallocate, and an identity check.
type Resource interface {
	// Allocate returns bytes bytes aligned to align, or an error.
	Allocate(bytes, align int) (unsafe.Pointer, error)
	// Deallocate releases a block previously returned by Allocate with the
	// same bytes and align.
	Deallocate(ptr unsafe.Pointer, bytes, align int)
	// IsEqual reports whether other refers to the same underlying resource,
	// mirroring the original's operator==.
	IsEqual(other Resource) bool
	// MaxSize returns the largest single allocation the resource can satisfy,
	// or 0 if unknown.
	MaxSize() int
}

// Resetter is an optional extension: resources that can discard all
// outstanding allocations in one step implement it.
type Resetter interface {
	Reset()
}

// Coalescer is an optional extension: resources that can merge adjacent free
// regions implement it.
type Coalescer interface {
	Coalesce()
}

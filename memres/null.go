package memres

import "unsafe"

type nullResource struct{}

var sharedNullResource = &nullResource{}

// Null returns a Resource that always fails to allocate, used to assert that
// a particular code path must never allocate (spec.md §1's "tight memory
// budget that forbids dynamic allocation inside the critical path").
func Null() Resource { return sharedNullResource }

func (r *nullResource) Allocate(int, int) (unsafe.Pointer, error) { return nil, ErrAllocFailed }

func (r *nullResource) Deallocate(unsafe.Pointer, int, int) {}

func (r *nullResource) IsEqual(other Resource) bool {
	o, ok := other.(*nullResource)
	return ok && o == r
}

func (r *nullResource) MaxSize() int { return 0 }

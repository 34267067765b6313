// Package arch defines the narrow hook surface the scheduler consumes for
// everything architecture-specific: context switching, interrupt masking,
// handler-mode detection, and the tick source. Per spec.md §1 these are
// external collaborators — the kernel calls them, it never implements them.
package arch

import "time"

// ThreadID identifies a thread to the hooks, without either package
// depending on the other's concrete thread type.
type ThreadID uint32

// Cookie is an opaque interrupt-mask token returned by IRQMask and consumed
// by the matching IRQUnmask.
type Cookie uint32

// Hooks is the architecture-specific surface the scheduler is built on.
//
// The only shipped implementation is the host port (package arch/host),
// which realizes context switching as a goroutine run-token hand-off. A
// bare-metal port — register save/restore, a real interrupt controller — is
// out of scope for this module; it would satisfy the same interface.
type Hooks interface {
	// SwitchContext transfers the run token from the from thread to the to
	// thread. It is called with the scheduler's critical section held, and
	// must not block: it only wakes to; the caller (from) parks afterward by
	// calling Park itself once it has released the critical section.
	SwitchContext(from, to ThreadID)

	// Park blocks the calling goroutine, which represents id, until some
	// other call resumes it via SwitchContext. It must be called without the
	// scheduler's critical section held.
	Park(id ThreadID)

	// Register installs a thread with the hooks so it can later be the
	// target of SwitchContext/Park. It must be called once per thread before
	// the thread is first scheduled.
	Register(id ThreadID)

	// Unregister releases whatever bookkeeping Register installed.
	Unregister(id ThreadID)

	// IRQMask masks interrupts (in the host port: acquires an additional
	// exclusion guard against goroutines that are not kernel threads, such
	// as a tick source) and returns a cookie to pass to IRQUnmask.
	IRQMask() Cookie

	// IRQUnmask restores the interrupt mask state captured by the matching
	// IRQMask call.
	IRQUnmask(Cookie)

	// InHandlerMode reports whether the caller is executing in interrupt
	// (handler) context, in which case PERM-class operations must refuse.
	InHandlerMode() bool

	// TickStart starts the periodic tick source, invoking onTick once per
	// period until the returned stop function is called.
	TickStart(period time.Duration, onTick func()) (stop func())
}

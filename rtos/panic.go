package rtos

import (
	"sync"
	"sync/atomic"
)

// FatalInfo describes a detected kernel-invariant violation: a corrupted
// list, an overwritten stack canary, or any other state the scheduler
// refuses to keep running past.
type FatalInfo struct {
	Thread string
	Reason string
	Err    error
}

var (
	fatalActive atomic.Bool
	fatalOnce   sync.Once

	fatalHook atomic.Value // func(FatalInfo)
)

// InFatalState reports whether Panic has already fired once process-wide.
func InFatalState() bool { return fatalActive.Load() }

// SetPanicHook installs a process-wide handler invoked the first time Panic
// runs. The default hook, if none is installed, calls Go's built-in panic.
// The hook must not itself panic or call Panic again.
func SetPanicHook(fn func(FatalInfo)) { fatalHook.Store(fn) }

// Panic reports a kernel-invariant violation. It logs via log (which may be
// nil) at fatal level, then invokes the installed panic hook exactly once
// for the lifetime of the process; subsequent calls are no-ops beyond the
// logging. Must not be called with the scheduler's critical section held,
// since a user-installed hook may itself want to inspect scheduler state.
func Panic(log interface{ Fatal(string, error) }, info FatalInfo) {
	if log != nil {
		log.Fatal(info.Reason, info.Err)
	}
	fatalOnce.Do(func() {
		fatalActive.Store(true)
		if v := fatalHook.Load(); v != nil {
			if fn, ok := v.(func(FatalInfo)); ok && fn != nil {
				fn(info)
				return
			}
		}
		panic(info.Reason)
	})
}

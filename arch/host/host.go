// Package host provides the only shipped implementation of arch.Hooks: a
// development/test port where each kernel thread is a goroutine and context
// switching is a run-token hand-off over channels, instead of a real
// register save/restore.
package host

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/micro-os-plus/micro-os-plus-xpack/arch"
)

// Host implements arch.Hooks on top of goroutines.
//
// InHandlerMode is modeled as CPU-global state (an atomic depth counter),
// not per-goroutine: on the single-core hardware this kernel targets, "is an
// interrupt handler currently executing" is a fact about the one CPU, not
// about any particular thread, so a global counter is the faithful model,
// not a simplification of a per-thread one.
type Host struct {
	mu      sync.Mutex
	resumes map[arch.ThreadID]chan struct{}

	handlerDepth atomic.Int32

	irqMu sync.Mutex
}

// New creates a Host port with no threads registered yet.
func New() *Host {
	return &Host{resumes: make(map[arch.ThreadID]chan struct{})}
}

// Register installs a buffered resume channel for id.
func (h *Host) Register(id arch.ThreadID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.resumes[id]; !ok {
		h.resumes[id] = make(chan struct{}, 1)
	}
}

// Unregister drops id's resume channel.
func (h *Host) Unregister(id arch.ThreadID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.resumes, id)
}

// SwitchContext wakes to's goroutine. from is accepted for API-name fidelity
// with spec.md's arch_switch_context(from, to) but is otherwise unused: the
// host port has no registers to save, since the goroutine's own stack
// already preserves from's state across the hand-off.
func (h *Host) SwitchContext(from, to arch.ThreadID) {
	_ = from
	h.mu.Lock()
	ch, ok := h.resumes[to]
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// Already has a pending resume; to will observe it on its next Park.
	}
}

// Park blocks the calling goroutine until SwitchContext(_, id) is called.
func (h *Host) Park(id arch.ThreadID) {
	h.mu.Lock()
	ch, ok := h.resumes[id]
	h.mu.Unlock()
	if !ok {
		return
	}
	<-ch
}

// IRQMask acquires the host port's single interrupt-exclusion guard. The rtos
// scheduler does not call it; scheduler state is guarded by its own mutex.
// The returned cookie is always 1; it exists for API shape parity with a
// real mask-level cookie.
func (h *Host) IRQMask() arch.Cookie {
	h.irqMu.Lock()
	return 1
}

// IRQUnmask releases the guard acquired by IRQMask.
func (h *Host) IRQUnmask(arch.Cookie) {
	h.irqMu.Unlock()
}

// InHandlerMode reports whether the tick source is currently inside onTick.
func (h *Host) InHandlerMode() bool {
	return h.handlerDepth.Load() > 0
}

// TickStart starts a time.Ticker-driven periodic callback, matching the
// reference kernel's own 1ms-ticker pattern. onTick runs with InHandlerMode
// true for its duration.
func (h *Host) TickStart(period time.Duration, onTick func()) (stop func()) {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				h.handlerDepth.Add(1)
				onTick()
				h.handlerDepth.Add(-1)
			}
		}
	}()
	var stopped sync.Once
	return func() {
		stopped.Do(func() { close(done) })
	}
}

package rtos

// FlagsMode selects how an expected mask is matched against the current
// mask, per spec.md §4.10.
type FlagsMode int

const (
	// FlagsAll wakes when every expected bit is set (the default).
	FlagsAll FlagsMode = iota
	// FlagsAny wakes when at least one expected bit is set.
	FlagsAny
)

// flagsWait is one pending waiter's match criteria, queued in arrival order.
type flagsWait struct {
	thread   *Thread
	expected uint32
	mode     FlagsMode
	clear    bool
	node     Node[*flagsWait]
}

func (w *flagsWait) satisfied(mask uint32) bool {
	if w.mode == FlagsAny {
		return mask&w.expected != 0
	}
	return mask&w.expected == w.expected
}

// EventFlags implements spec.md §4.10's global variant: a bitmask with a
// FIFO-ordered list of waiters, each with its own (expected, mode, clear).
type EventFlags struct {
	sched *Scheduler

	name    string
	mask    uint32
	waiters List[*flagsWait]
}

// NewEventFlags constructs a global event-flags group bound to sched.
func NewEventFlags(sched *Scheduler, name string) *EventFlags {
	return &EventFlags{sched: sched, name: name}
}

// Mask returns the current bitmask.
func (f *EventFlags) Mask() uint32 {
	f.sched.mu.Lock()
	defer f.sched.mu.Unlock()
	return f.mask
}

// Raise ORs bits into the mask, then scans waiters in FIFO order, waking and
// clearing (if requested) each whose condition is now satisfied. Earlier
// waiters consume before later ones, per spec.md §4.10.
func (f *EventFlags) Raise(self *Thread, bits uint32) Errno {
	f.sched.mu.Lock()
	defer f.sched.mu.Unlock()

	f.mask |= bits
	if f.sched.log != nil {
		f.sched.log.PrimitiveEvent("eventflags", "raise", map[string]any{"name": f.name, "mask": f.mask})
	}

	n := f.waiters.Front()
	count := f.waiters.Length()
	for i := 0; i < count && n != nil; i++ {
		next := n.next
		w := n.Value
		if w.satisfied(f.mask) {
			if w.clear {
				f.mask &^= w.expected
			}
			f.waiters.Remove(n)
			w.thread.cancelWait = nil
			w.thread.wakeResult = OK
			f.sched.makeReady(w.thread)
		}
		n = next
	}

	f.sched.yieldIfPreempted(self)
	return OK
}

// Wait blocks self until (mask & expected) satisfies mode, per spec.md
// §4.10, optionally clearing the matched bits on success.
func (f *EventFlags) Wait(self *Thread, expected uint32, mode FlagsMode, clear bool) Errno {
	return f.wait(self, expected, mode, clear, -1)
}

// WaitFor is Wait bounded by ticks.
func (f *EventFlags) WaitFor(self *Thread, expected uint32, mode FlagsMode, clear bool, ticks uint64) Errno {
	return f.wait(self, expected, mode, clear, int64(ticks))
}

func (f *EventFlags) wait(self *Thread, expected uint32, mode FlagsMode, clear bool, deadlineTicks int64) Errno {
	if f.sched.hooks.InHandlerMode() {
		return EPERM
	}

	f.sched.mu.Lock()
	defer f.sched.mu.Unlock()

	w := &flagsWait{thread: self, expected: expected, mode: mode, clear: clear}
	if w.satisfied(f.mask) {
		if clear {
			f.mask &^= expected
		}
		return OK
	}

	w.node.Value = w
	f.waiters.pushBack(&w.node)
	self.cancelWait = func() { f.waiters.Remove(&w.node) }
	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	if deadlineTicks >= 0 {
		f.sched.Clock.timeouts.Add(self, f.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}
	if f.sched.log != nil {
		f.sched.log.PrimitiveEvent("eventflags", "wait.block", map[string]any{"name": f.name, "thread": self.name})
	}

	f.sched.blockAndWait(self)

	f.waiters.Remove(&w.node)
	self.cancelWait = nil
	f.sched.Clock.timeouts.Remove(self)

	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// FlagsRaise implements spec.md §4.5's per-thread local flags: OR bits into
// t's local mask and wake it if it is blocked on its own flags and its
// condition is now satisfied.
func (t *Thread) FlagsRaise(bits uint32) Errno {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	t.localFlags |= bits
	if t.sched.log != nil {
		t.sched.log.PrimitiveEvent("localflags", "raise", map[string]any{"thread": t.name, "mask": t.localFlags})
	}

	if w := t.localFlagWait; w != nil && w.satisfied(t.localFlags) {
		if w.clear {
			t.localFlags &^= w.expected
		}
		t.localFlagWait = nil
		t.cancelWait = nil
		t.wakeResult = OK
		t.sched.makeReady(t)
		t.sched.yieldIfPreempted(t.sched.current)
	}
	return OK
}

// FlagsWait blocks t (which must be the calling thread) on its own local
// flags until expected is satisfied per mode, per spec.md §4.5/§4.10.
func (t *Thread) FlagsWait(expected uint32, mode FlagsMode, clear bool) Errno {
	return t.flagsWaitFor(expected, mode, clear, -1)
}

// FlagsWaitFor is FlagsWait bounded by ticks.
func (t *Thread) FlagsWaitFor(expected uint32, mode FlagsMode, clear bool, ticks uint64) Errno {
	return t.flagsWaitFor(expected, mode, clear, int64(ticks))
}

func (t *Thread) flagsWaitFor(expected uint32, mode FlagsMode, clear bool, deadlineTicks int64) Errno {
	if t.sched.hooks.InHandlerMode() {
		return EPERM
	}

	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	w := &flagsWait{thread: t, expected: expected, mode: mode, clear: clear}
	if w.satisfied(t.localFlags) {
		if clear {
			t.localFlags &^= expected
		}
		return OK
	}

	t.localFlagWait = w
	t.cancelWait = func() { t.localFlagWait = nil }
	t.state = StateSuspended
	t.wakeResult = ETIMEDOUT
	if deadlineTicks >= 0 {
		t.sched.Clock.timeouts.Add(t, t.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}

	t.sched.blockAndWait(t)

	t.localFlagWait = nil
	t.cancelWait = nil
	t.sched.Clock.timeouts.Remove(t)

	if t.interrupted {
		t.interrupted = false
		return EINTR
	}
	return t.wakeResult
}

package rtos

// Cond implements spec.md §4.9: atomic release-and-wait against a mutex
// supplied at each call, not stored on the condition variable itself.
type Cond struct {
	sched *Scheduler

	name    string
	waiters WaiterQueue
}

// NewCond constructs a condition variable bound to sched.
func NewCond(sched *Scheduler, name string) *Cond {
	return &Cond{sched: sched, name: name}
}

// Wait atomically releases m and suspends self on the condition, then
// re-acquires m before returning — unconditionally, even if the wakeup was
// spurious, per spec.md §4.9.
func (c *Cond) Wait(self *Thread, m *Mutex) Errno {
	return c.wait(self, m, -1)
}

// WaitFor is Wait bounded by ticks.
func (c *Cond) WaitFor(self *Thread, m *Mutex, ticks uint64) Errno {
	return c.wait(self, m, int64(ticks))
}

func (c *Cond) wait(self *Thread, m *Mutex, deadlineTicks int64) Errno {
	if c.sched.hooks.InHandlerMode() {
		return EPERM
	}
	if unlockErr := m.Unlock(self); unlockErr != OK {
		return unlockErr
	}

	c.sched.mu.Lock()
	c.waiters.Add(self)
	self.cancelWait = func() { c.waiters.Remove(self) }
	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	if deadlineTicks >= 0 {
		c.sched.Clock.timeouts.Add(self, c.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}
	if c.sched.log != nil {
		c.sched.log.PrimitiveEvent("cond", "wait.block", map[string]any{"name": c.name, "thread": self.name})
	}

	c.sched.blockAndWait(self)

	c.waiters.Remove(self)
	self.cancelWait = nil
	c.sched.Clock.timeouts.Remove(self)
	result := self.wakeResult
	if self.interrupted {
		self.interrupted = false
		result = EINTR
	}
	c.sched.mu.Unlock()

	// Re-acquire the mutex unconditionally before returning, regardless of
	// why Wait woke up, per spec.md §4.9.
	if lockErr := m.Lock(self); lockErr != OK && result == OK {
		result = lockErr
	}
	return result
}

// Signal wakes the highest-priority, longest-waiting thread, if any. It
// becomes ready but cannot actually run until it re-acquires the associated
// mutex inside its own Wait call.
func (c *Cond) Signal(self *Thread) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()

	w := c.waiters.WakeupOne()
	if w == nil {
		return
	}
	w.cancelWait = nil
	w.wakeResult = OK
	c.sched.makeReady(w)
	if c.sched.log != nil {
		c.sched.log.PrimitiveEvent("cond", "signal", map[string]any{"name": c.name})
	}
	c.sched.yieldIfPreempted(self)
}

// Broadcast wakes every waiter.
func (c *Cond) Broadcast(self *Thread) {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()

	for _, w := range c.waiters.WakeupAll() {
		w.cancelWait = nil
		w.wakeResult = OK
		c.sched.makeReady(w)
	}
	if c.sched.log != nil {
		c.sched.log.PrimitiveEvent("cond", "broadcast", map[string]any{"name": c.name})
	}
	c.sched.yieldIfPreempted(self)
}

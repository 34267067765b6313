package rtos

// Semaphore implements spec.md §4.8: a bounded counting semaphore with a
// priority-ordered waiter queue.
type Semaphore struct {
	sched *Scheduler

	name         string
	count        int
	maxCount     int
	initialCount int

	waiters WaiterQueue
}

// NewSemaphore constructs a semaphore with the given initial and maximum
// counts, bound to sched.
func NewSemaphore(sched *Scheduler, name string, initialCount, maxCount int) *Semaphore {
	return &Semaphore{
		sched:        sched,
		name:         name,
		count:        initialCount,
		maxCount:     maxCount,
		initialCount: initialCount,
	}
}

// Count returns the current count.
func (sem *Semaphore) Count() int {
	sem.sched.mu.Lock()
	defer sem.sched.mu.Unlock()
	return sem.count
}

// Post increments the semaphore, or hands the increment directly to the
// highest-priority waiter if one exists, per spec.md §4.8. Returns EAGAIN if
// count is already at max_count and there is no waiter to hand off to.
func (sem *Semaphore) Post(self *Thread) Errno {
	sem.sched.mu.Lock()
	defer sem.sched.mu.Unlock()

	if w := sem.waiters.WakeupOne(); w != nil {
		w.cancelWait = nil
		w.wakeResult = OK
		sem.sched.makeReady(w)
		if sem.sched.log != nil {
			sem.sched.log.PrimitiveEvent("semaphore", "post.handoff", map[string]any{"name": sem.name})
		}
		sem.sched.yieldIfPreempted(self)
		return OK
	}

	if sem.count >= sem.maxCount {
		return EAGAIN
	}
	sem.count++
	if sem.sched.log != nil {
		sem.sched.log.PrimitiveEvent("semaphore", "post", map[string]any{"name": sem.name, "count": sem.count})
	}
	return OK
}

// Wait blocks self until count > 0, then decrements it.
func (sem *Semaphore) Wait(self *Thread) Errno {
	return sem.wait(self, -1)
}

// TryWait attempts to decrement without blocking.
func (sem *Semaphore) TryWait(self *Thread) Errno {
	return sem.wait(self, 0)
}

// WaitFor blocks at most the given number of ticks.
func (sem *Semaphore) WaitFor(self *Thread, ticks uint64) Errno {
	return sem.wait(self, int64(ticks))
}

func (sem *Semaphore) wait(self *Thread, deadlineTicks int64) Errno {
	if deadlineTicks != 0 && sem.sched.hooks.InHandlerMode() {
		return EPERM
	}

	sem.sched.mu.Lock()
	defer sem.sched.mu.Unlock()

	if sem.count > 0 {
		sem.count--
		return OK
	}

	if deadlineTicks == 0 {
		return EWOULDBLOCK
	}

	sem.waiters.Add(self)
	self.cancelWait = func() { sem.waiters.Remove(self) }
	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	if deadlineTicks > 0 {
		sem.sched.Clock.timeouts.Add(self, sem.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}
	if sem.sched.log != nil {
		sem.sched.log.PrimitiveEvent("semaphore", "wait.block", map[string]any{"name": sem.name, "thread": self.name})
	}

	sem.sched.blockAndWait(self)

	sem.waiters.Remove(self)
	self.cancelWait = nil
	sem.sched.Clock.timeouts.Remove(self)

	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// Reset drains every waiter with EINTR and restores the initial count.
func (sem *Semaphore) Reset() {
	sem.sched.mu.Lock()
	defer sem.sched.mu.Unlock()

	for _, w := range sem.waiters.WakeupAll() {
		w.cancelWait = nil
		w.wakeResult = EINTR
		sem.sched.makeReady(w)
	}
	sem.count = sem.initialCount
	sem.sched.yieldIfPreempted(sem.sched.current)
}

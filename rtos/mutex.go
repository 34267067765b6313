package rtos

// MutexType selects the self-lock behavior of spec.md §4.7.
type MutexType int

const (
	MutexNormal MutexType = iota
	MutexErrorCheck
	MutexRecursive
)

// MutexProtocol selects the priority protocol a mutex enforces while held.
type MutexProtocol int

const (
	ProtocolNone MutexProtocol = iota
	ProtocolInherit
	ProtocolProtect
)

// MutexRobustness selects what happens to a mutex whose owner terminates
// while still holding it.
type MutexRobustness int

const (
	RobustnessStalled MutexRobustness = iota
	RobustnessRobust
)

// MutexConsistency tracks a robust mutex's state after an owner death.
type MutexConsistency int

const (
	ConsistencyConsistent MutexConsistency = iota
	ConsistencyInconsistent
	ConsistencyNotRecoverable
)

// Mutex implements spec.md §4.7: ownership, optional recursion, an optional
// priority protocol, and optional robustness across owner termination.
type Mutex struct {
	sched *Scheduler

	name  string
	typ   MutexType
	proto MutexProtocol

	ceilingPrio int

	robustness  MutexRobustness
	consistency MutexConsistency

	owner          *Thread
	recursionCount int
	maxCount       int

	waiters WaiterQueue
}

// MutexOption configures a Mutex at construction, in the functional-option
// style used throughout this package.
type MutexOption func(*Mutex)

// WithMutexType sets the self-lock behavior. Default is MutexNormal.
func WithMutexType(t MutexType) MutexOption { return func(m *Mutex) { m.typ = t } }

// WithMutexProtocol sets the priority protocol. Default is ProtocolNone.
func WithMutexProtocol(p MutexProtocol) MutexOption { return func(m *Mutex) { m.proto = p } }

// WithCeilingPriority sets the priority ceiling for ProtocolProtect.
func WithCeilingPriority(p int) MutexOption { return func(m *Mutex) { m.ceilingPrio = p } }

// WithMutexRobustness sets the owner-death behavior. Default is RobustnessStalled.
func WithMutexRobustness(r MutexRobustness) MutexOption { return func(m *Mutex) { m.robustness = r } }

// WithMaxRecursionCount bounds a MutexRecursive's recursion_count. Default 0 means unbounded.
func WithMaxRecursionCount(n int) MutexOption { return func(m *Mutex) { m.maxCount = n } }

// NewMutex constructs a free mutex bound to sched.
func NewMutex(sched *Scheduler, name string, opts ...MutexOption) *Mutex {
	m := &Mutex{sched: sched, name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Owner returns the current owner, or nil if the mutex is free.
func (m *Mutex) Owner() *Thread {
	m.sched.mu.Lock()
	defer m.sched.mu.Unlock()
	return m.owner
}

// Consistency reports the robust-mutex consistency state.
func (m *Mutex) Consistency() MutexConsistency {
	m.sched.mu.Lock()
	defer m.sched.mu.Unlock()
	return m.consistency
}

// Lock blocks the calling thread until it acquires m, per spec.md §4.7.
func (m *Mutex) Lock(self *Thread) Errno {
	return m.lock(self, -1, false)
}

// TryLock attempts to acquire m without blocking.
func (m *Mutex) TryLock(self *Thread) Errno {
	return m.lock(self, 0, true)
}

// LockFor blocks at most the given number of ticks.
func (m *Mutex) LockFor(self *Thread, ticks uint64) Errno {
	return m.lock(self, int64(ticks), false)
}

// lock is the shared implementation; deadlineTicks < 0 means unbounded,
// tryOnly bypasses the timeout machinery entirely for the non-blocking form.
func (m *Mutex) lock(self *Thread, deadlineTicks int64, tryOnly bool) Errno {
	if !tryOnly && m.sched.hooks.InHandlerMode() {
		return EPERM
	}

	m.sched.mu.Lock()
	defer m.sched.mu.Unlock()

	if m.consistency == ConsistencyNotRecoverable {
		return ENOTRECOVERABLE
	}

	if m.owner == nil {
		return m.acquireLocked(self)
	}

	if m.owner == self {
		switch m.typ {
		case MutexRecursive:
			if m.maxCount > 0 && m.recursionCount >= m.maxCount {
				return EAGAIN
			}
			m.recursionCount++
			return OK
		case MutexErrorCheck:
			return EDEADLK
		default: // MutexNormal: spec.md §4.7/§9 leaves this implementation-defined.
			return EDEADLK
		}
	}

	if m.proto == ProtocolProtect {
		if self.dynPrio > m.ceilingPrio {
			return EINVAL
		}
	}

	if tryOnly {
		return EWOULDBLOCK
	}

	if m.proto == ProtocolInherit {
		m.propagateInherit(self, m.sched.cfg.MaxInheritanceChainDepth)
	}

	m.waiters.Add(self)
	self.blockedOnMutex = m
	self.cancelWait = func() { m.waiters.Remove(self) }
	self.state = StateSuspended
	if deadlineTicks >= 0 {
		m.sched.Clock.timeouts.Add(self, m.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}
	if m.sched.log != nil {
		m.sched.log.PrimitiveEvent("mutex", "lock.block", map[string]any{"name": m.name, "thread": self.name})
	}

	self.wakeResult = ETIMEDOUT
	m.sched.blockAndWait(self)

	m.waiters.Remove(self)
	self.blockedOnMutex = nil
	self.cancelWait = nil
	m.sched.Clock.timeouts.Remove(self)

	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// acquireLocked assigns ownership to self unconditionally. Must be called
// with mu held and m free.
func (m *Mutex) acquireLocked(self *Thread) Errno {
	m.owner = self
	m.recursionCount = 1
	if self != nil {
		self.ownedMutexes[m] = struct{}{}
		self.recomputeDynPrio()
	}
	wasInconsistent := m.consistency == ConsistencyInconsistent
	if m.sched.log != nil {
		m.sched.log.PrimitiveEvent("mutex", "lock.acquire", map[string]any{"name": m.name, "thread": threadName(self)})
	}
	if wasInconsistent {
		return EOWNERDEAD
	}
	return OK
}

// propagateInherit walks the blocked-owner chain raising each owner's
// dyn_prio to at least blocker's, bounded by maxDepth (spec.md §9's
// implementation-defined bound on an unbounded chain walk).
func (m *Mutex) propagateInherit(blocker *Thread, maxDepth int) {
	owner := m.owner
	for depth := 0; owner != nil && depth < maxDepth; depth++ {
		if owner.dynPrio >= blocker.dynPrio {
			return
		}
		owner.dynPrio = blocker.dynPrio
		if owner.state == StateReady {
			m.sched.dequeueReady(owner)
			m.sched.enqueueReady(owner)
		}
		if m.sched.log != nil {
			m.sched.log.ThreadEvent(owner.name, "inherited", owner.dynPrio)
		}

		// Follow the chain if owner is itself blocked on another
		// inherit-protocol mutex.
		blockedOn := owner.blockedOnMutex
		if blockedOn == nil || blockedOn.proto != ProtocolInherit {
			return
		}
		owner = blockedOn.owner
	}
}

// Unlock releases m. Only the owner may call it.
func (m *Mutex) Unlock(self *Thread) Errno {
	m.sched.mu.Lock()
	defer m.sched.mu.Unlock()

	if m.owner != self {
		return EPERM
	}

	if m.typ == MutexRecursive && m.recursionCount > 1 {
		m.recursionCount--
		return OK
	}

	if m.consistency == ConsistencyInconsistent {
		m.consistency = ConsistencyNotRecoverable
	}

	delete(self.ownedMutexes, m)
	self.recomputeDynPrio()
	m.recursionCount = 0
	prevOwner := m.owner
	m.owner = nil

	if m.sched.log != nil {
		m.sched.log.PrimitiveEvent("mutex", "unlock", map[string]any{"name": m.name, "thread": threadName(prevOwner)})
	}

	next := m.waiters.WakeupOne()
	if next == nil {
		m.sched.reschedule()
		return OK
	}

	next.blockedOnMutex = nil
	m.transferOwnership(next)
	m.sched.makeReady(next)
	m.sched.yieldIfPreempted(self)
	return OK
}

// transferOwnership hands m directly to next, bypassing the free/acquire
// dance, as spec.md §4.7's "ownership transfers atomically to the chosen
// waiter" requires. Must be called with mu held.
func (m *Mutex) transferOwnership(next *Thread) {
	m.owner = next
	m.recursionCount = 1
	next.ownedMutexes[m] = struct{}{}
	next.recomputeDynPrio()
	if m.consistency == ConsistencyInconsistent {
		next.wakeResult = EOWNERDEAD
	} else {
		next.wakeResult = OK
	}
}

// MarkConsistent must be called by the acquirer of a mutex whose Lock
// returned OWNERDEAD, before that acquirer unlocks it, or the mutex becomes
// permanently NOTRECOVERABLE.
func (m *Mutex) MarkConsistent(self *Thread) Errno {
	m.sched.mu.Lock()
	defer m.sched.mu.Unlock()
	if m.owner != self {
		return EPERM
	}
	if m.consistency != ConsistencyInconsistent {
		return EINVAL
	}
	m.consistency = ConsistencyConsistent
	return OK
}

// onOwnerTerminated runs when a thread holding m terminates without
// unlocking it (spec.md §4.7 robust clause). Must be called with mu held.
func (m *Mutex) onOwnerTerminated(t *Thread) {
	delete(t.ownedMutexes, m)
	m.recursionCount = 0
	m.owner = nil

	if m.robustness == RobustnessRobust {
		m.consistency = ConsistencyInconsistent
	}

	next := m.waiters.WakeupOne()
	if next == nil {
		return
	}
	next.blockedOnMutex = nil
	m.transferOwnership(next)
	m.sched.makeReady(next)
}

func threadName(t *Thread) string {
	if t == nil {
		return ""
	}
	return t.name
}

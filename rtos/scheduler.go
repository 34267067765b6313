package rtos

import (
	"sync"
	"time"

	"github.com/micro-os-plus/micro-os-plus-xpack/arch"
	"github.com/micro-os-plus/micro-os-plus-xpack/internal/klog"
)

// Scheduler is the kernel singleton: ready set, current thread, lock
// nesting, and the run-token hand-off (spec.md §3 Scheduler / §4.6).
//
// All mutable scheduler state — the ready set, every primitive's waiter
// list, and the timeout queue — is protected by mu, the Go-port stand-in for
// the original's single irq-masking critical section (spec.md §5).
type Scheduler struct {
	mu sync.Mutex

	hooks arch.Hooks
	cfg   Config
	log   *klog.Logger

	Clock Clock

	nextID  arch.ThreadID
	threads []*Thread

	ready       []List[*Thread]
	current     *Thread
	idle        *Thread
	isStarted   bool
	lockNesting int
	needResched bool

	stopTick func()
}

// NewScheduler constructs a Scheduler bound to hooks, with cfg applied on
// top of DefaultConfig. It also creates and registers the idle thread, but
// does not start running it — call Start for that.
func NewScheduler(hooks arch.Hooks, opts ...Option) *Scheduler {
	cfg := DefaultConfig()
	cfg.apply(opts...)

	s := &Scheduler{
		hooks: hooks,
		cfg:   cfg,
		log:   cfg.Logger,
		ready: make([]List[*Thread], cfg.PriorityLevels),
	}

	s.idle = s.newThread("idle", int(PriorityIdle), func(any) any {
		for {
			s.Yield()
		}
	}, nil)

	return s
}

// Config returns the scheduler's effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// IsStarted reports whether Start has been called.
func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStarted
}

// Current returns the thread currently holding the run token, or nil before
// Start.
func (s *Scheduler) Current() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Idle returns the scheduler's idle thread.
func (s *Scheduler) Idle() *Thread { return s.idle }

func (s *Scheduler) newThread(name string, prio int, entry EntryFunc, arg any) *Thread {
	t := &Thread{
		sched:      s,
		id:         s.nextID,
		name:       name,
		staticPrio: prio,
		dynPrio:    prio,
		state:      StateReady,
		stack: stackInfo{
			bytes:      s.cfg.DefaultStackBytes,
			canaryLow:  stackCanary,
			canaryHigh: stackCanary,
		},
		entry:        entry,
		arg:          arg,
		ownedMutexes: make(map[*Mutex]struct{}),
		started:      make(chan struct{}),
		exited:       make(chan struct{}),
	}
	s.nextID++
	s.threads = append(s.threads, t)
	s.hooks.Register(t.id)
	s.enqueueReady(t)

	go func() {
		s.hooks.Park(t.id)
		close(t.started)
		result := t.entry(t.arg)
		s.finishThread(t, result)
	}()

	return t
}

// CreateThread creates a new thread in state ready (spec.md §4.5 create).
// name, priority, and the entry function/argument are as documented there;
// the thread's recorded stack size is always Config.DefaultStackBytes.
func (s *Scheduler) CreateThread(name string, priority int, entry EntryFunc, arg any) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newThread(name, priority, entry, arg)
}

// checkCanaries reports whether t's stack canaries are intact. On the host
// port nothing writes the canaries after creation, so this is always true;
// it is the check reschedule runs before routing a failure to Panic.
func (t *Thread) checkCanaries() bool {
	return t.stack.canaryLow == stackCanary && t.stack.canaryHigh == stackCanary
}

// Start picks the highest-priority ready thread (normally the first thread
// created, or idle), hands it the run token, and starts the tick source
// driving the timeout queue. Unlike a bare-metal port, the host port's Start
// returns immediately to its non-kernel caller; it does not block the
// calling goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.isStarted = true
	s.reschedule()
	s.mu.Unlock()

	period := time.Second / time.Duration(s.cfg.SystickFrequencyHz)
	s.stopTick = s.hooks.TickStart(period, s.tick)
}

// Stop halts the tick source. It does not terminate any thread.
func (s *Scheduler) Stop() {
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
}

// tick runs on the tick source (ISR context, per spec.md §4.4): it advances
// the monotonic clock, wakes every thread whose timeout has expired, and
// requests a reschedule if any of them outranks current. Called without mu
// held.
func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isStarted {
		return
	}
	for _, rec := range s.Clock.advance() {
		t := rec.thread
		switch rec.cause {
		case causeSleep:
			t.wakeResult = ETIMEDOUT
		case causePrimitiveWait:
			t.wakeResult = ETIMEDOUT
		}
		s.makeReady(t)
	}
	s.reschedule()
}

// pickHighestReady returns the head of the highest non-empty ready bucket.
// Must be called with mu held. Falls back to idle, which is always ready
// when nothing else is.
func (s *Scheduler) pickHighestReady() *Thread {
	for p := len(s.ready) - 1; p >= 0; p-- {
		if t := s.ready[p].Front(); t != nil {
			return t.Value
		}
	}
	return s.idle
}

// enqueueReady links t into the ready bucket for its current dyn_prio,
// remembering that bucket on t so dequeueReady finds it again even if
// dyn_prio changes while t is linked (priority inheritance can raise a
// ready thread's dyn_prio if it still owns a contended mutex).
func (s *Scheduler) enqueueReady(t *Thread) {
	p := clamp(t.dynPrio, 0, len(s.ready)-1)
	t.state = StateReady
	t.readyBucket = p
	t.schedNode.Value = t
	s.ready[p].pushBack(&t.schedNode)
}

func (s *Scheduler) dequeueReady(t *Thread) {
	s.ready[t.readyBucket].Remove(&t.schedNode)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// makeReady transitions t from suspended to ready and links it into the
// ready set at its current dyn_prio. It also removes any lingering waiter
// or timeout node, satisfying "the node is guaranteed removed before the
// call returns" for whichever primitive woke it. Must be called with mu
// held.
func (s *Scheduler) makeReady(t *Thread) {
	s.Clock.timeouts.Remove(t)
	if t.state == StateReady || t.state == StateRunning {
		return
	}
	s.enqueueReady(t)
	if s.log != nil {
		s.log.ThreadEvent(t.name, "suspended->ready", t.dynPrio)
	}
}

// reschedule compares the best ready thread against current and, if it
// strictly outranks current (or current is not running — blocked or just
// terminated), hands it the run token via SwitchContext. A running current
// is never linked into the ready set, so this is the only place that needs
// to weigh it against the ready set explicitly. Preemption is deferred
// while lockNesting > 0. Must be called with mu held.
func (s *Scheduler) reschedule() {
	if !s.isStarted {
		return
	}
	if s.lockNesting > 0 {
		s.needResched = true
		return
	}
	s.needResched = false

	prev := s.current
	next := s.pickHighestReady()

	if prev != nil && prev.state == StateRunning && next.dynPrio <= prev.dynPrio {
		return
	}

	if !next.checkCanaries() {
		// Panic must run without the critical section held.
		s.mu.Unlock()
		Panic(s.log, FatalInfo{Thread: next.name, Reason: "stack canary overwritten"})
		s.mu.Lock()
	}

	s.dequeueReady(next)
	next.state = StateRunning
	if prev != nil && prev.state == StateRunning {
		// prev is being preempted rather than voluntarily blocking; put it
		// back on the ready set at its (possibly changed) priority.
		s.enqueueReady(prev)
	}
	s.current = next
	if s.cfg.ContextSwitchStats {
		next.contextSwitches++
	}
	if s.log != nil {
		s.log.ThreadEvent(next.name, "scheduled", next.dynPrio)
	}
	var fromID arch.ThreadID
	if prev != nil {
		fromID = prev.id
	}
	s.hooks.SwitchContext(fromID, next.id)
}

// blockAndWait must be called with mu held and self.state already set to a
// non-running state. It reschedules away from self, releases mu, parks
// self's goroutine until resumed, then re-acquires mu before returning, per
// spec.md §5's "on resume it re-enters the critical section to re-read".
func (s *Scheduler) blockAndWait(self *Thread) {
	s.reschedule()
	parked := self != s.current
	s.mu.Unlock()
	if parked {
		s.hooks.Park(self.id)
	}
	s.mu.Lock()
}

// yieldIfPreempted reschedules and, if self is no longer current, parks
// self's goroutine and re-acquires mu on resume. Used by wake-side
// operations (post/unlock/raise/send/free) that may hand the CPU to a
// higher-priority thread they just woke. self may be nil for calls made
// from a non-thread (ISR) context, in which case no park ever happens. Must
// be called with mu held; returns with mu held.
func (s *Scheduler) yieldIfPreempted(self *Thread) {
	s.reschedule()
	if self == nil {
		return
	}
	if self != s.current {
		s.mu.Unlock()
		s.hooks.Park(self.id)
		s.mu.Lock()
	}
}

// finishThread runs at the end of a thread's entry function, in that
// thread's own goroutine.
func (s *Scheduler) finishThread(t *Thread, result any) {
	s.mu.Lock()
	t.exitVal = result
	t.state = StateTerminated
	if s.log != nil {
		s.log.ThreadEvent(t.name, "running->terminated", t.dynPrio)
	}
	for _, j := range t.joiners.WakeupAll() {
		j.wakeResult = OK
		s.makeReady(j)
	}
	for m := range t.ownedMutexes {
		m.onOwnerTerminated(t)
	}
	s.reschedule()
	s.mu.Unlock()

	close(t.exited)
	s.hooks.Unregister(t.id)
}

// Lock nests the scheduler's preemption lock; while locked, wake-side
// operations still take effect but do not preempt the current thread until
// the matching Unlock brings the nesting back to zero. It returns the
// previous nesting depth, to be passed to Unlock.
func (s *Scheduler) Lock() int {
	s.mu.Lock()
	prev := s.lockNesting
	s.lockNesting++
	s.mu.Unlock()
	return prev
}

// Unlock restores the nesting depth captured by Lock. If it reaches zero and
// a reschedule was deferred while locked, it happens now.
func (s *Scheduler) Unlock(prevNesting int) {
	s.mu.Lock()
	s.lockNesting = prevNesting
	if s.lockNesting == 0 && s.needResched {
		self := s.current
		s.yieldIfPreempted(self)
	}
	s.mu.Unlock()
}

// Yield moves self to the back of its own priority bucket and hands the run
// token to the new head of the highest-priority bucket, which may be a peer
// of equal priority (round-robin) or self again if it had no peer. Unlike
// reschedule, this deliberately makes self briefly visible in the ready set,
// since the whole point is to let an equal-priority peer go ahead of it.
func (s *Scheduler) Yield() {
	s.mu.Lock()
	self := s.current
	if self == nil {
		s.mu.Unlock()
		return
	}

	s.enqueueReady(self)
	next := s.pickHighestReady()
	s.dequeueReady(next)
	next.state = StateRunning
	s.current = next

	if next != self {
		if s.cfg.ContextSwitchStats {
			next.contextSwitches++
		}
		if s.log != nil {
			s.log.ThreadEvent(next.name, "scheduled", next.dynPrio)
		}
		s.hooks.SwitchContext(self.id, next.id)
	}

	parked := next != self
	s.mu.Unlock()
	if parked {
		s.hooks.Park(self.id)
	}
}

// SleepFor blocks self for the given number of ticks (spec.md §4.4
// sleep_for). It returns ETIMEDOUT on ordinary expiry, EINTR if
// asynchronously interrupted, EPERM if called from ISR context.
func (s *Scheduler) SleepFor(self *Thread, ticks uint64) Errno {
	if s.hooks.InHandlerMode() {
		return EPERM
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	s.Clock.timeouts.Add(self, s.Clock.SteadyNow()+ticks, causeSleep)
	if s.log != nil {
		s.log.ThreadEvent(self.name, "running->suspended", self.dynPrio)
	}

	s.blockAndWait(self)

	s.Clock.timeouts.Remove(self)
	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// Join blocks self until other terminates, or returns immediately if it
// already has. Joining an already-destroyed thread is a caller error and
// returns EINVAL.
func (s *Scheduler) Join(self, other *Thread) Errno {
	s.mu.Lock()
	defer s.mu.Unlock()

	if other.state == StateDestroyed {
		return EINVAL
	}
	if other.state == StateTerminated {
		return OK
	}

	other.joiners.Add(self)
	self.cancelWait = func() { other.joiners.Remove(self) }
	self.state = StateSuspended
	self.wakeResult = OK
	s.blockAndWait(self)

	other.joiners.Remove(self)
	self.cancelWait = nil
	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// Destroy transitions a terminated thread to destroyed. It only changes the
// thread's state: it does not check for pending joiners and does not remove
// the thread from s.threads. Calling it on a thread that has not terminated
// is a caller error and returns EINVAL.
func (s *Scheduler) Destroy(t *Thread) Errno {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != StateTerminated {
		return EINVAL
	}
	t.state = StateDestroyed
	if s.log != nil {
		s.log.ThreadEvent(t.name, "terminated->destroyed", t.dynPrio)
	}
	return OK
}

// SuspendSelf transitions self from running to suspended and yields the run
// token until a matching Resume (spec.md §4.5 suspend_self). It returns
// EPERM if called from ISR context, EINTR if woken by Interrupt rather than
// Resume.
func (s *Scheduler) SuspendSelf(self *Thread) Errno {
	if s.hooks.InHandlerMode() {
		return EPERM
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	self.state = StateSuspended
	self.wakeResult = OK
	if s.log != nil {
		s.log.ThreadEvent(self.name, "running->suspended", self.dynPrio)
	}
	s.blockAndWait(self)

	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// Resume transitions target from suspended to ready, preempting self if
// target now outranks it and the scheduler is unlocked (spec.md §4.5
// resume). self is the calling thread, used only to decide whether to park
// after waking target; it is nil when called from ISR context, in which
// case no park happens. Resuming a thread that is not suspended is a
// caller error and returns EINVAL.
func (s *Scheduler) Resume(self, target *Thread) Errno {
	s.mu.Lock()
	defer s.mu.Unlock()

	if target.state != StateSuspended {
		return EINVAL
	}
	target.wakeResult = OK
	s.makeReady(target)
	s.yieldIfPreempted(self)
	return OK
}

// SetPrio updates target's static priority and recomputes its dyn_prio
// (spec.md §4.5 set_prio): dyn_prio stays >= static_prio and reflects any
// priority-ceiling/inheritance contribution from mutexes target owns. A
// lowered static_prio on a thread still boosted by an owned PRIO_INHERIT
// mutex's waiter takes effect only once that boost is released. self is the
// calling thread, used to decide whether the new priority relation demands
// an immediate reschedule; it is nil when called from ISR context.
func (s *Scheduler) SetPrio(self, target *Thread, prio int) Errno {
	if prio < 0 || prio >= s.cfg.PriorityLevels {
		return EINVAL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target.staticPrio = prio
	target.recomputeDynPrio()
	if s.log != nil {
		s.log.ThreadEvent(target.name, "set_prio", target.dynPrio)
	}
	s.yieldIfPreempted(self)
	return OK
}

// Interrupt asynchronously cancels a suspended thread's wait: it is removed
// from whatever waiter list and the timeout queue it is on, in this one
// critical section, and made ready with EINTR as its wakeResult (spec.md §5
// "Cancellation").
func (s *Scheduler) Interrupt(t *Thread) Errno {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.state != StateSuspended {
		return EINVAL
	}
	t.interrupted = true
	t.wakeResult = EINTR
	// t.cancelWait, if set, detaches t from whatever primitive-owned queue
	// it is linked into; every blocking call installs it before suspending,
	// so the primitive's own wake path simply finds nothing left to do when
	// it later calls the same removal itself.
	if t.cancelWait != nil {
		t.cancelWait()
		t.cancelWait = nil
	}
	s.makeReady(t)
	s.yieldIfPreempted(s.current)
	return OK
}

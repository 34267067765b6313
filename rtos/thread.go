package rtos

import (
	"github.com/micro-os-plus/micro-os-plus-xpack/arch"
)

// Priority levels, per spec.md §6: idle(0) < lowest(1) < ... < realtime(254).
type Priority int

const (
	PriorityIdle      Priority = 0
	PriorityLowest    Priority = 1
	PriorityLow       Priority = 32
	PriorityBelowNorm Priority = 64
	PriorityNormal    Priority = 128
	PriorityAboveNorm Priority = 192
	PriorityHigh      Priority = 224
	PriorityRealtime  Priority = 254
)

// State is a Thread's position in the lifecycle state machine of spec.md §4.5.
type State int

const (
	StateUndefined State = iota
	StateReady
	StateRunning
	StateSuspended
	StateTerminated
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateTerminated:
		return "terminated"
	case StateDestroyed:
		return "destroyed"
	default:
		return "undefined"
	}
}

// stackInfo is a symbolic stand-in for the original's stack_area: on the
// host port threads run on a goroutine's runtime-managed stack, so there is
// no real canary to overwrite, but the fields are kept for API fidelity and
// so a future bare-metal port has somewhere to put real values.
type stackInfo struct {
	bytes       int
	canaryLow   uint32
	canaryHigh  uint32
}

const stackCanary = 0xDEADC0DE

// EntryFunc is a thread's body. Its return value is stored as the thread's
// exit value; Join reports only an Errno and does not return it, and no
// accessor exposes it.
type EntryFunc func(arg any) any

// Thread represents a schedulable activity: an execution context, a state
// machine, and a per-thread event-flag store (spec.md §3 Thread).
//
// Every field below is only ever mutated while the owning Scheduler's
// critical section is held; Thread itself exposes no exported mutable
// field, only methods that take the lock.
type Thread struct {
	sched *Scheduler
	id    arch.ThreadID

	name       string
	staticPrio int
	dynPrio    int
	state      State

	stack stackInfo

	entry    EntryFunc
	arg      any
	exitVal  any

	localFlags    uint32
	localFlagWait *flagsWait

	ownedMutexes   map[*Mutex]struct{}
	blockedOnMutex *Mutex
	// cancelWait, when non-nil, detaches t from whatever primitive-owned
	// queue it is currently linked into; Interrupt calls it to implement
	// asynchronous cancellation generically across every blocking primitive.
	cancelWait func()

	parent   *Thread
	children []*Thread

	schedNode   Node[*Thread]
	readyBucket int
	timeoutNode Node[*timeoutRecord]
	waiterNode  Node[*Thread]
	wakeResult  Errno

	// mqSendNode/mqSendMsg back a blocked message-queue sender: the sender's
	// own goroutine owns the message until a matching receive copies it out,
	// so no queue-owned storage is needed. mqRecvBuf, when non-nil, is where
	// a matching send on the queue a receiver is blocked on will deliver the
	// message directly.
	mqSendNode Node[*Thread]
	mqSendMsg  mqMessage
	mqRecvBuf  *mqMessage

	// mpWaitBuf, when non-nil, is where a concurrent Free will deliver a
	// block directly to a thread blocked in Alloc, bypassing the free list.
	mpWaitBuf *mpBlock

	joiners WaiterQueue

	interrupted bool

	contextSwitches uint64
	cpuCycles       uint64

	started chan struct{}
	exited  chan struct{}
}

// Name returns the thread's name.
func (t *Thread) Name() string { return t.name }

// StaticPriority returns the thread's base priority.
func (t *Thread) StaticPriority() int { return t.staticPrio }

// DynPriority returns the thread's current (possibly inherited) priority.
func (t *Thread) DynPriority() int {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.dynPrio
}

// State returns the thread's current lifecycle state.
func (t *Thread) State() State {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.state
}

// ContextSwitches returns the number of times this thread has been handed
// the run token, if the scheduler's Config.ContextSwitchStats is enabled.
func (t *Thread) ContextSwitches() uint64 {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.contextSwitches
}

// recomputeDynPrio enforces dyn_prio >= static_prio and equal to
// max(static_prio, max ceiling/inherited contribution of owned mutexes).
// Must be called with the scheduler lock held.
func (t *Thread) recomputeDynPrio() {
	p := t.staticPrio
	for m := range t.ownedMutexes {
		switch m.proto {
		case ProtocolInherit:
			if w := m.waiters.Head(); w != nil && w.dynPrio > p {
				p = w.dynPrio
			}
		case ProtocolProtect:
			if m.ceilingPrio > p {
				p = m.ceilingPrio
			}
		}
	}
	t.dynPrio = p
	if t.state == StateReady && t.sched != nil {
		t.sched.dequeueReady(t)
		t.sched.enqueueReady(t)
	}
}

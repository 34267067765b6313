package rtos

// mqMessage is one in-flight message: payload plus its send priority.
type mqMessage struct {
	payload []byte
	prio    uint8
}

// mqSenderQueue orders blocked senders by descending message priority,
// FIFO within equal priority — the same shape as WaiterQueue, but keyed on
// the pending message's priority rather than the thread's dyn_prio, and
// linked through mqSendNode rather than waiterNode so a thread can be a
// message-queue sender and, independently, wait on something else's
// waiterNode (it never needs to, but the node types must not collide).
type mqSenderQueue struct {
	list List[*Thread]
}

func (q *mqSenderQueue) empty() bool { return q.list.Empty() }

func (q *mqSenderQueue) add(t *Thread) {
	n := &t.mqSendNode
	n.Value = t

	at := q.list.head
	for i := 0; i < q.list.count && at != nil; i++ {
		if at.Value.mqSendMsg.prio < t.mqSendMsg.prio {
			q.list.insertBefore(at, n)
			return
		}
		at = at.next
		if at == q.list.head {
			break
		}
	}
	q.list.pushBack(n)
}

func (q *mqSenderQueue) remove(t *Thread) { q.list.Remove(&t.mqSendNode) }

func (q *mqSenderQueue) wakeupOne() *Thread {
	head := q.list.head
	if head == nil {
		return nil
	}
	t := head.Value
	q.list.Remove(head)
	return t
}

func (q *mqSenderQueue) wakeupAll() []*Thread {
	out := make([]*Thread, 0, q.list.count)
	for {
		t := q.wakeupOne()
		if t == nil {
			break
		}
		out = append(out, t)
	}
	return out
}

// MessageQueue implements spec.md §4.11: a bounded, descending-priority,
// FIFO-within-priority ring. A send hands its message directly to a blocked
// receiver if there is one; a receive that frees a slot moves the head
// blocked sender's message into the ring.
type MessageQueue struct {
	sched *Scheduler

	name     string
	msgSize  int
	capacity int

	ring      []mqMessage
	senders   mqSenderQueue
	receivers WaiterQueue
}

// NewMessageQueue constructs a message queue holding up to capacity
// messages of at most msgSize bytes each, bound to sched.
func NewMessageQueue(sched *Scheduler, name string, capacity, msgSize int) *MessageQueue {
	return &MessageQueue{
		sched:    sched,
		name:     name,
		msgSize:  msgSize,
		capacity: capacity,
		ring:     make([]mqMessage, 0, capacity),
	}
}

// Length returns the number of messages currently queued (excludes blocked
// senders whose messages have not yet been copied in).
func (q *MessageQueue) Length() int {
	q.sched.mu.Lock()
	defer q.sched.mu.Unlock()
	return len(q.ring)
}

// ringInsert inserts msg at the first position whose stored priority is
// strictly less than msg.prio, maintaining descending priority order with
// FIFO within equal priority, per spec.md §4.11.
func (q *MessageQueue) ringInsert(msg mqMessage) {
	i := 0
	for i < len(q.ring) && q.ring[i].prio >= msg.prio {
		i++
	}
	q.ring = append(q.ring, mqMessage{})
	copy(q.ring[i+1:], q.ring[i:])
	q.ring[i] = msg
}

// Send blocks until payload is queued or handed directly to a waiting
// receiver. Returns EMSGSIZE if payload exceeds msgSize.
func (q *MessageQueue) Send(self *Thread, payload []byte, prio uint8) Errno {
	return q.send(self, payload, prio, -1)
}

// TrySend attempts Send without blocking.
func (q *MessageQueue) TrySend(self *Thread, payload []byte, prio uint8) Errno {
	return q.send(self, payload, prio, 0)
}

// SendFor blocks at most the given number of ticks.
func (q *MessageQueue) SendFor(self *Thread, payload []byte, prio uint8, ticks uint64) Errno {
	return q.send(self, payload, prio, int64(ticks))
}

func (q *MessageQueue) send(self *Thread, payload []byte, prio uint8, deadlineTicks int64) Errno {
	if len(payload) > q.msgSize {
		return EMSGSIZE
	}
	if q.sched.hooks.InHandlerMode() && deadlineTicks != 0 {
		return EPERM
	}

	msg := mqMessage{payload: append([]byte(nil), payload...), prio: prio}

	q.sched.mu.Lock()
	defer q.sched.mu.Unlock()

	if r := q.receivers.WakeupOne(); r != nil {
		*r.mqRecvBuf = msg
		r.mqRecvBuf = nil
		r.cancelWait = nil
		r.wakeResult = OK
		q.sched.makeReady(r)
		q.sched.yieldIfPreempted(self)
		return OK
	}

	if len(q.ring) < q.capacity {
		q.ringInsert(msg)
		if q.sched.log != nil {
			q.sched.log.PrimitiveEvent("mqueue", "send", map[string]any{"name": q.name, "length": len(q.ring)})
		}
		return OK
	}

	if deadlineTicks == 0 {
		return EWOULDBLOCK
	}

	self.mqSendMsg = msg
	q.senders.add(self)
	self.cancelWait = func() { q.senders.remove(self) }
	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	if deadlineTicks > 0 {
		q.sched.Clock.timeouts.Add(self, q.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}

	q.sched.blockAndWait(self)

	q.senders.remove(self)
	self.cancelWait = nil
	q.sched.Clock.timeouts.Remove(self)

	if self.interrupted {
		self.interrupted = false
		return EINTR
	}
	return self.wakeResult
}

// Receive blocks until a message is available, then returns its payload and
// send priority.
func (q *MessageQueue) Receive(self *Thread) ([]byte, uint8, Errno) {
	return q.receive(self, -1)
}

// TryReceive attempts Receive without blocking.
func (q *MessageQueue) TryReceive(self *Thread) ([]byte, uint8, Errno) {
	return q.receive(self, 0)
}

// ReceiveFor blocks at most the given number of ticks.
func (q *MessageQueue) ReceiveFor(self *Thread, ticks uint64) ([]byte, uint8, Errno) {
	return q.receive(self, int64(ticks))
}

func (q *MessageQueue) receive(self *Thread, deadlineTicks int64) ([]byte, uint8, Errno) {
	if q.sched.hooks.InHandlerMode() && deadlineTicks != 0 {
		return nil, 0, EPERM
	}

	q.sched.mu.Lock()
	defer q.sched.mu.Unlock()

	if len(q.ring) > 0 {
		msg := q.ring[0]
		q.ring = q.ring[1:]
		if s := q.senders.wakeupOne(); s != nil {
			q.ringInsert(s.mqSendMsg)
			s.cancelWait = nil
			s.wakeResult = OK
			q.sched.makeReady(s)
			q.sched.yieldIfPreempted(self)
		}
		return msg.payload, msg.prio, OK
	}

	if s := q.senders.wakeupOne(); s != nil {
		msg := s.mqSendMsg
		s.cancelWait = nil
		s.wakeResult = OK
		q.sched.makeReady(s)
		q.sched.yieldIfPreempted(self)
		return msg.payload, msg.prio, OK
	}

	if deadlineTicks == 0 {
		return nil, 0, EWOULDBLOCK
	}

	var buf mqMessage
	self.mqRecvBuf = &buf
	q.receivers.Add(self)
	self.cancelWait = func() { q.receivers.Remove(self); self.mqRecvBuf = nil }
	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	if deadlineTicks > 0 {
		q.sched.Clock.timeouts.Add(self, q.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}

	q.sched.blockAndWait(self)

	q.receivers.Remove(self)
	self.cancelWait = nil
	self.mqRecvBuf = nil
	q.sched.Clock.timeouts.Remove(self)

	if self.interrupted {
		self.interrupted = false
		return nil, 0, EINTR
	}
	if self.wakeResult != OK {
		return nil, 0, self.wakeResult
	}
	return buf.payload, buf.prio, OK
}

// Reset drops every queued message and wakes every blocked sender and
// receiver with EINTR.
func (q *MessageQueue) Reset() {
	q.sched.mu.Lock()
	defer q.sched.mu.Unlock()

	q.ring = q.ring[:0]
	for _, s := range q.senders.wakeupAll() {
		s.cancelWait = nil
		s.wakeResult = EINTR
		q.sched.makeReady(s)
	}
	for _, r := range q.receivers.WakeupAll() {
		r.cancelWait = nil
		r.mqRecvBuf = nil
		r.wakeResult = EINTR
		q.sched.makeReady(r)
	}
	q.sched.yieldIfPreempted(q.sched.current)
}

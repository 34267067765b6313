package rtos

import (
	"unsafe"

	"github.com/micro-os-plus/micro-os-plus-xpack/memres"
)

// unsafeBytes views a memres.Resource allocation as a byte slice of the
// requested length. Confined to this one call site, matching SPEC_FULL.md's
// "narrow mutex-held boundary" framing for the list package.
func unsafeBytes(ptr unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

// mpBlock is one pool block, linked into the free list through its own
// first bytes on the original target; here it is simply the backing slice
// handed out whole, and the free list is a plain Go slice of pointers since
// Go's GC makes the original's embedded-next-pointer trick unnecessary.
type mpBlock struct {
	data []byte
}

// MemoryPool implements spec.md §4.12: a bounded pool of fixed-size blocks
// carved from a memres.Resource, with a blocking allocator.
type MemoryPool struct {
	sched *Scheduler

	name      string
	blockSize int
	capacity  int

	res   memres.Resource
	free  []*mpBlock
	count int

	waiters WaiterQueue
}

// NewMemoryPool partitions capacity blocks of blockSize bytes out of res
// (memres.NewArena(make([]byte, capacity*blockSize)) if res is nil) and
// binds the pool to sched.
func NewMemoryPool(sched *Scheduler, name string, capacity, blockSize int, res memres.Resource) *MemoryPool {
	if res == nil {
		res = memres.NewArena(make([]byte, capacity*blockSize))
	}
	p := &MemoryPool{
		sched:     sched,
		name:      name,
		blockSize: blockSize,
		capacity:  capacity,
		res:       res,
		free:      make([]*mpBlock, 0, capacity),
	}
	for i := 0; i < capacity; i++ {
		ptr, err := res.Allocate(blockSize, 1)
		if err != nil {
			break
		}
		p.free = append(p.free, &mpBlock{data: unsafeBytes(ptr, blockSize)})
	}
	p.count = len(p.free)
	return p
}

// IsEmpty reports whether the pool has no free blocks.
func (p *MemoryPool) IsEmpty() bool {
	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	return p.count == 0
}

// IsFull reports whether every block is free.
func (p *MemoryPool) IsFull() bool {
	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	return p.count == p.capacity
}

// Alloc blocks until a block is available, then returns it.
func (p *MemoryPool) Alloc(self *Thread) ([]byte, Errno) {
	return p.alloc(self, -1)
}

// TryAlloc attempts Alloc without blocking.
func (p *MemoryPool) TryAlloc(self *Thread) ([]byte, Errno) {
	return p.alloc(self, 0)
}

// AllocFor blocks at most the given number of ticks.
func (p *MemoryPool) AllocFor(self *Thread, ticks uint64) ([]byte, Errno) {
	return p.alloc(self, int64(ticks))
}

func (p *MemoryPool) alloc(self *Thread, deadlineTicks int64) ([]byte, Errno) {
	if p.sched.hooks.InHandlerMode() && deadlineTicks != 0 {
		return nil, EPERM
	}

	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()

	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		p.count--
		if p.sched.log != nil {
			p.sched.log.PrimitiveEvent("mempool", "alloc", map[string]any{"name": p.name, "count": p.count})
		}
		return b.data, OK
	}

	if deadlineTicks == 0 {
		return nil, EWOULDBLOCK
	}

	self.mpWaitBuf = &mpBlock{}
	p.waiters.Add(self)
	self.cancelWait = func() { p.waiters.Remove(self); self.mpWaitBuf = nil }
	self.state = StateSuspended
	self.wakeResult = ETIMEDOUT
	if deadlineTicks > 0 {
		p.sched.Clock.timeouts.Add(self, p.sched.Clock.SteadyNow()+uint64(deadlineTicks), causePrimitiveWait)
	}

	p.sched.blockAndWait(self)

	p.waiters.Remove(self)
	self.cancelWait = nil
	buf := self.mpWaitBuf
	self.mpWaitBuf = nil
	p.sched.Clock.timeouts.Remove(self)

	if self.interrupted {
		self.interrupted = false
		return nil, EINTR
	}
	if self.wakeResult != OK {
		return nil, self.wakeResult
	}
	return buf.data, OK
}

// Free returns block to the pool, or hands it directly to the
// highest-priority blocked allocator if one exists, per spec.md §4.12.
func (p *MemoryPool) Free(self *Thread, block []byte) Errno {
	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()

	b := &mpBlock{data: block}

	if w := p.waiters.WakeupOne(); w != nil {
		*w.mpWaitBuf = *b
		w.cancelWait = nil
		w.wakeResult = OK
		p.sched.makeReady(w)
		if p.sched.log != nil {
			p.sched.log.PrimitiveEvent("mempool", "free.handoff", map[string]any{"name": p.name})
		}
		p.sched.yieldIfPreempted(self)
		return OK
	}

	if p.count >= p.capacity {
		return EINVAL
	}
	p.free = append(p.free, b)
	p.count++
	if p.sched.log != nil {
		p.sched.log.PrimitiveEvent("mempool", "free", map[string]any{"name": p.name, "count": p.count})
	}
	return OK
}

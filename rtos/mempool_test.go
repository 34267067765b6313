package rtos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPoolAllocFreeRoundTrip(t *testing.T) {
	s := newTestScheduler(t)
	pool := NewMemoryPool(s, "pool", 2, 8, nil)
	done := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		buf, errno := pool.Alloc(self)
		if errno != OK {
			done <- errno
			return nil
		}
		buf[0] = 0xAB
		done <- pool.Free(self, buf)
		return nil
	}, nil)

	assert.Equal(t, OK, await(t, done, testTimeout))
	assert.True(t, pool.IsFull())
	assert.False(t, pool.IsEmpty())
}

func TestMemoryPoolConservation(t *testing.T) {
	s := newTestScheduler(t)
	pool := NewMemoryPool(s, "pool", 3, 4, nil)
	done := make(chan int, 1)

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		var bufs [][]byte
		for i := 0; i < 3; i++ {
			buf, errno := pool.Alloc(self)
			require.Equal(t, OK, errno)
			bufs = append(bufs, buf)
		}
		done <- len(bufs)
		return nil
	}, nil)

	assert.Equal(t, 3, await(t, done, testTimeout))
	assert.True(t, pool.IsEmpty())
	assert.False(t, pool.IsFull())
}

func TestMemoryPoolTryAllocWouldBlockWhenExhausted(t *testing.T) {
	s := newTestScheduler(t)
	pool := NewMemoryPool(s, "pool", 1, 4, nil)
	done := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		_, errno := pool.Alloc(self)
		require.Equal(t, OK, errno)
		_, errno = pool.TryAlloc(self)
		done <- errno
		return nil
	}, nil)

	assert.Equal(t, EWOULDBLOCK, await(t, done, testTimeout))
}

// TestMemoryPoolAllocBlocksThenFreeHandsOffDirectly exercises spec.md §4.12
// / scenario S6: a pool fully allocated, a thread blocked on alloc, and
// another thread freeing a block. Free must hand the block directly to the
// waiter rather than re-adding it to the free list.
func TestMemoryPoolAllocBlocksThenFreeHandsOffDirectly(t *testing.T) {
	s := newTestScheduler(t)
	pool := NewMemoryPool(s, "pool", 1, 4, nil)

	held := make(chan []byte, 1)
	freed := make(chan struct{})
	waiting := make(chan struct{})
	waitResult := make(chan []byte, 1)

	var holder *Thread
	holder = s.CreateThread("holder", int(PriorityNormal), func(any) any {
		buf, errno := pool.Alloc(holder)
		require.Equal(t, OK, errno)
		held <- buf
		<-freed
		return nil
	}, nil)
	firstBuf := await(t, held, testTimeout)

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		close(waiting)
		buf, errno := pool.Alloc(waiter)
		require.Equal(t, OK, errno)
		waitResult <- buf
		return nil
	}, nil)

	<-waiting
	require.Eventually(t, func() bool { return waiter.State() == StateSuspended }, testTimeout, time.Millisecond)

	var freer *Thread
	freer = s.CreateThread("freer", int(PriorityNormal), func(any) any {
		assert.Equal(t, OK, pool.Free(freer, firstBuf))
		close(freed)
		return nil
	}, nil)
	_ = freer

	got := await(t, waitResult, testTimeout)
	assert.Equal(t, firstBuf, got)
	assert.True(t, pool.IsEmpty())
	assert.False(t, pool.IsFull())
}

func TestMemoryPoolFreeOfOverCapacityReturnsEINVAL(t *testing.T) {
	s := newTestScheduler(t)
	pool := NewMemoryPool(s, "pool", 1, 4, nil)
	done := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		buf, errno := pool.Alloc(self)
		require.Equal(t, OK, errno)
		require.Equal(t, OK, pool.Free(self, buf))
		done <- pool.Free(self, buf)
		return nil
	}, nil)

	assert.Equal(t, EINVAL, await(t, done, testTimeout))
}

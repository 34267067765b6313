package rtos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePostIncrementsWhenNoWaiter(t *testing.T) {
	s := newTestScheduler(t)
	sem := NewSemaphore(s, "sem", 0, 4)
	done := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("poster", int(PriorityNormal), func(any) any {
		done <- sem.Post(self)
		return nil
	}, nil)

	assert.Equal(t, OK, await(t, done, testTimeout))
	assert.Equal(t, 1, sem.Count())
}

func TestSemaphorePostOverflowReturnsEAGAIN(t *testing.T) {
	s := newTestScheduler(t)
	sem := NewSemaphore(s, "sem", 2, 2)
	done := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("poster", int(PriorityNormal), func(any) any {
		done <- sem.Post(self)
		return nil
	}, nil)

	assert.Equal(t, EAGAIN, await(t, done, testTimeout))
}

func TestSemaphoreWaitBlocksThenWakesOnPost(t *testing.T) {
	s := newTestScheduler(t)
	sem := NewSemaphore(s, "sem", 0, 1)
	waitResult := make(chan Errno, 1)
	waiting := make(chan struct{})

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		close(waiting)
		waitResult <- sem.Wait(waiter)
		return nil
	}, nil)

	<-waiting
	require.Eventually(t, func() bool {
		return waiter.State() == StateSuspended
	}, testTimeout, time.Millisecond)

	var poster *Thread
	poster = s.CreateThread("poster", int(PriorityNormal), func(any) any {
		sem.Post(poster)
		return nil
	}, nil)
	_ = poster

	assert.Equal(t, OK, await(t, waitResult, testTimeout))
	assert.Equal(t, 0, sem.Count())
}

func TestSemaphoreTryWaitWouldBlock(t *testing.T) {
	s := newTestScheduler(t)
	sem := NewSemaphore(s, "sem", 0, 1)
	done := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		done <- sem.TryWait(self)
		return nil
	}, nil)

	assert.Equal(t, EWOULDBLOCK, await(t, done, testTimeout))
}

// TestSemaphorePostWakesHighestPriorityWaiterFirst exercises the
// priority-ordered waiter queue: of two threads blocked on the same
// semaphore, the higher-priority one must be handed the post first.
func TestSemaphorePostWakesHighestPriorityWaiterFirst(t *testing.T) {
	s := newTestScheduler(t)
	sem := NewSemaphore(s, "sem", 0, 2)
	order := make(chan string, 2)
	lowWaiting := make(chan struct{})
	highWaiting := make(chan struct{})

	var low *Thread
	low = s.CreateThread("low", int(PriorityLow), func(any) any {
		close(lowWaiting)
		sem.Wait(low)
		order <- "low"
		return nil
	}, nil)

	<-lowWaiting
	require.Eventually(t, func() bool { return low.State() == StateSuspended }, testTimeout, time.Millisecond)

	var high *Thread
	high = s.CreateThread("high", int(PriorityHigh), func(any) any {
		close(highWaiting)
		sem.Wait(high)
		order <- "high"
		return nil
	}, nil)

	<-highWaiting
	require.Eventually(t, func() bool { return high.State() == StateSuspended }, testTimeout, time.Millisecond)

	var poster *Thread
	poster = s.CreateThread("poster", int(PriorityNormal), func(any) any {
		sem.Post(poster)
		sem.Post(poster)
		return nil
	}, nil)
	_ = poster

	assert.Equal(t, "high", await(t, order, testTimeout))
	assert.Equal(t, "low", await(t, order, testTimeout))
}

func TestSemaphoreResetDrainsWaitersWithEINTR(t *testing.T) {
	s := newTestScheduler(t)
	sem := NewSemaphore(s, "sem", 0, 1)
	waitResult := make(chan Errno, 1)
	waiting := make(chan struct{})

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		close(waiting)
		waitResult <- sem.Wait(waiter)
		return nil
	}, nil)

	<-waiting
	require.Eventually(t, func() bool { return waiter.State() == StateSuspended }, testTimeout, time.Millisecond)

	// Reset is called from within a kernel thread, matching real usage: its
	// internal yieldIfPreempted treats the caller as "self" and is only
	// well-defined for a thread pausing its own goroutine.
	resetterDone := make(chan struct{})
	s.CreateThread("resetter", int(PriorityNormal), func(any) any {
		sem.Reset()
		close(resetterDone)
		return nil
	}, nil)
	<-resetterDone

	assert.Equal(t, EINTR, await(t, waitResult, testTimeout))
	assert.Equal(t, 0, sem.Count())
}

package rtos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFlagsWaitSucceedsImmediatelyWhenAlreadySatisfied(t *testing.T) {
	s := newTestScheduler(t)
	f := NewEventFlags(s, "f")
	done := make(chan Errno, 1)

	var raiser *Thread
	raiser = s.CreateThread("raiser", int(PriorityNormal), func(any) any {
		f.Raise(raiser, 0x1)
		return nil
	}, nil)

	require.Eventually(t, func() bool { return f.Mask() == 0x1 }, testTimeout, time.Millisecond)

	var self *Thread
	self = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		done <- f.Wait(self, 0x1, FlagsAll, false)
		return nil
	}, nil)

	assert.Equal(t, OK, await(t, done, testTimeout))
	assert.Equal(t, uint32(0x1), f.Mask())
}

func TestEventFlagsWaitAllRequiresEveryBit(t *testing.T) {
	s := newTestScheduler(t)
	f := NewEventFlags(s, "f")
	waiting := make(chan struct{})
	result := make(chan Errno, 1)

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		close(waiting)
		result <- f.Wait(waiter, 0x3, FlagsAll, false)
		return nil
	}, nil)

	<-waiting
	require.Eventually(t, func() bool { return waiter.State() == StateSuspended }, testTimeout, time.Millisecond)

	var raiser1 *Thread
	raiser1 = s.CreateThread("raiser1", int(PriorityNormal), func(any) any {
		f.Raise(raiser1, 0x1)
		return nil
	}, nil)
	_ = raiser1
	require.Eventually(t, func() bool { return f.Mask() == 0x1 }, testTimeout, time.Millisecond)
	require.Equal(t, StateSuspended, waiter.State(), "must not wake on a partial match under FlagsAll")

	var raiser2 *Thread
	raiser2 = s.CreateThread("raiser2", int(PriorityNormal), func(any) any {
		f.Raise(raiser2, 0x2)
		return nil
	}, nil)
	_ = raiser2

	assert.Equal(t, OK, await(t, result, testTimeout))
}

func TestEventFlagsWaitAnyWakesOnFirstMatchingBit(t *testing.T) {
	s := newTestScheduler(t)
	f := NewEventFlags(s, "f")
	waiting := make(chan struct{})
	result := make(chan Errno, 1)

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		close(waiting)
		result <- f.Wait(waiter, 0x6, FlagsAny, false)
		return nil
	}, nil)
	<-waiting
	require.Eventually(t, func() bool { return waiter.State() == StateSuspended }, testTimeout, time.Millisecond)

	var raiser *Thread
	raiser = s.CreateThread("raiser", int(PriorityNormal), func(any) any {
		f.Raise(raiser, 0x2)
		return nil
	}, nil)
	_ = raiser

	assert.Equal(t, OK, await(t, result, testTimeout))
}

func TestEventFlagsWaitWithClearConsumesMatchedBits(t *testing.T) {
	s := newTestScheduler(t)
	f := NewEventFlags(s, "f")
	waiting := make(chan struct{})
	result := make(chan Errno, 1)

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		close(waiting)
		result <- f.Wait(waiter, 0x1, FlagsAll, true)
		return nil
	}, nil)
	<-waiting
	require.Eventually(t, func() bool { return waiter.State() == StateSuspended }, testTimeout, time.Millisecond)

	var raiser *Thread
	raiser = s.CreateThread("raiser", int(PriorityNormal), func(any) any {
		f.Raise(raiser, 0x3)
		return nil
	}, nil)
	_ = raiser

	assert.Equal(t, OK, await(t, result, testTimeout))
	assert.Equal(t, uint32(0x2), f.Mask(), "the matched bit must be cleared, leaving the unrelated bit set")
}

func TestEventFlagsEarlierWaiterConsumesBeforeLaterOne(t *testing.T) {
	s := newTestScheduler(t)
	f := NewEventFlags(s, "f")
	order := make(chan string, 2)
	firstWaiting := make(chan struct{})
	secondWaiting := make(chan struct{})

	var first *Thread
	first = s.CreateThread("first", int(PriorityNormal), func(any) any {
		close(firstWaiting)
		f.Wait(first, 0x1, FlagsAll, true)
		order <- "first"
		return nil
	}, nil)
	<-firstWaiting
	require.Eventually(t, func() bool { return first.State() == StateSuspended }, testTimeout, time.Millisecond)

	var second *Thread
	second = s.CreateThread("second", int(PriorityNormal), func(any) any {
		close(secondWaiting)
		f.Wait(second, 0x1, FlagsAll, false)
		order <- "second"
		return nil
	}, nil)
	<-secondWaiting
	require.Eventually(t, func() bool { return second.State() == StateSuspended }, testTimeout, time.Millisecond)

	var raiser *Thread
	raiser = s.CreateThread("raiser", int(PriorityNormal), func(any) any {
		f.Raise(raiser, 0x1)
		return nil
	}, nil)
	_ = raiser

	// first clears the bit it consumed, so second never sees it satisfied
	// from this single raise.
	assert.Equal(t, "first", await(t, order, testTimeout))
	require.Equal(t, StateSuspended, second.State())

	var raiser2 *Thread
	raiser2 = s.CreateThread("raiser2", int(PriorityNormal), func(any) any {
		f.Raise(raiser2, 0x1)
		return nil
	}, nil)
	_ = raiser2
	assert.Equal(t, "second", await(t, order, testTimeout))
}

func TestThreadLocalFlagsWaitAndRaise(t *testing.T) {
	s := newTestScheduler(t)
	result := make(chan Errno, 1)
	started := make(chan struct{})

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		close(started)
		result <- self.FlagsWait(0x1, FlagsAll, false)
		return nil
	}, nil)

	<-started
	require.Eventually(t, func() bool { return self.State() == StateSuspended }, testTimeout, time.Millisecond)

	raiseResult := make(chan Errno, 1)
	s.CreateThread("raiser", int(PriorityNormal), func(any) any {
		raiseResult <- self.FlagsRaise(0x1)
		return nil
	}, nil)

	assert.Equal(t, OK, await(t, raiseResult, testTimeout))
	assert.Equal(t, OK, await(t, result, testTimeout))
}

func TestThreadLocalFlagsWaitForTimesOut(t *testing.T) {
	s := newTestScheduler(t)
	result := make(chan Errno, 1)

	var self *Thread
	self = s.CreateThread("t", int(PriorityNormal), func(any) any {
		result <- self.FlagsWaitFor(0x1, FlagsAll, false, 5)
		return nil
	}, nil)

	assert.Equal(t, ETIMEDOUT, await(t, result, testTimeout))
}

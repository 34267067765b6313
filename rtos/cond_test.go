package rtos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondWaitReacquiresMutexBeforeReturning(t *testing.T) {
	s := newTestScheduler(t)
	m := NewMutex(s, "m")
	c := NewCond(s, "c")
	waiting := make(chan struct{})
	waitResult := make(chan Errno, 1)

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(waiter))
		close(waiting)
		waitResult <- c.Wait(waiter, m)
		// Wait must return holding m again.
		assert.Equal(t, waiter, m.Owner())
		m.Unlock(waiter)
		return nil
	}, nil)

	<-waiting
	require.Eventually(t, func() bool { return waiter.State() == StateSuspended }, testTimeout, time.Millisecond)

	var signaler *Thread
	signaler = s.CreateThread("signaler", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(signaler))
		c.Signal(signaler)
		m.Unlock(signaler)
		return nil
	}, nil)

	assert.Equal(t, OK, await(t, waitResult, testTimeout))
}

func TestCondWaitForTimesOutAndReacquiresMutex(t *testing.T) {
	s := newTestScheduler(t)
	m := NewMutex(s, "m")
	c := NewCond(s, "c")
	waitResult := make(chan Errno, 1)

	var waiter *Thread
	waiter = s.CreateThread("waiter", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(waiter))
		waitResult <- c.WaitFor(waiter, m, 5)
		assert.Equal(t, waiter, m.Owner())
		m.Unlock(waiter)
		return nil
	}, nil)

	assert.Equal(t, ETIMEDOUT, await(t, waitResult, testTimeout))
}

func TestCondSignalWakesOneHighestPriorityWaiter(t *testing.T) {
	s := newTestScheduler(t)
	m := NewMutex(s, "m")
	c := NewCond(s, "c")
	order := make(chan string, 2)
	lowWaiting := make(chan struct{})
	highWaiting := make(chan struct{})

	var low *Thread
	low = s.CreateThread("low", int(PriorityLow), func(any) any {
		require.Equal(t, OK, m.Lock(low))
		close(lowWaiting)
		c.Wait(low, m)
		order <- "low"
		m.Unlock(low)
		return nil
	}, nil)

	<-lowWaiting
	require.Eventually(t, func() bool { return low.State() == StateSuspended }, testTimeout, time.Millisecond)

	var high *Thread
	high = s.CreateThread("high", int(PriorityHigh), func(any) any {
		require.Equal(t, OK, m.Lock(high))
		close(highWaiting)
		c.Wait(high, m)
		order <- "high"
		m.Unlock(high)
		return nil
	}, nil)

	<-highWaiting
	require.Eventually(t, func() bool { return high.State() == StateSuspended }, testTimeout, time.Millisecond)

	var signaler *Thread
	signaler = s.CreateThread("signaler", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(signaler))
		c.Signal(signaler)
		m.Unlock(signaler)
		return nil
	}, nil)
	_ = signaler

	assert.Equal(t, "high", await(t, order, testTimeout))

	var signaler2 *Thread
	signaler2 = s.CreateThread("signaler2", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(signaler2))
		c.Signal(signaler2)
		m.Unlock(signaler2)
		return nil
	}, nil)
	_ = signaler2

	assert.Equal(t, "low", await(t, order, testTimeout))
}

func TestCondBroadcastWakesAllWaiters(t *testing.T) {
	s := newTestScheduler(t)
	m := NewMutex(s, "m")
	c := NewCond(s, "c")
	woken := make(chan string, 2)
	aWaiting := make(chan struct{})
	bWaiting := make(chan struct{})

	var a *Thread
	a = s.CreateThread("a", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(a))
		close(aWaiting)
		c.Wait(a, m)
		woken <- "a"
		m.Unlock(a)
		return nil
	}, nil)
	<-aWaiting
	require.Eventually(t, func() bool { return a.State() == StateSuspended }, testTimeout, time.Millisecond)

	var b *Thread
	b = s.CreateThread("b", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(b))
		close(bWaiting)
		c.Wait(b, m)
		woken <- "b"
		m.Unlock(b)
		return nil
	}, nil)
	<-bWaiting
	require.Eventually(t, func() bool { return b.State() == StateSuspended }, testTimeout, time.Millisecond)

	var signaler *Thread
	signaler = s.CreateThread("signaler", int(PriorityNormal), func(any) any {
		require.Equal(t, OK, m.Lock(signaler))
		c.Broadcast(signaler)
		m.Unlock(signaler)
		return nil
	}, nil)
	_ = signaler

	first := await(t, woken, testTimeout)
	second := await(t, woken, testTimeout)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{first, second})
}

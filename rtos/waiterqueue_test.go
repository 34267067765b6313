package rtos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaiterQueueOrdersByPriorityThenFIFO(t *testing.T) {
	var q WaiterQueue
	low := &Thread{name: "low", dynPrio: 10}
	highA := &Thread{name: "highA", dynPrio: 50}
	highB := &Thread{name: "highB", dynPrio: 50}
	mid := &Thread{name: "mid", dynPrio: 30}

	q.Add(low)
	q.Add(highA)
	q.Add(mid)
	q.Add(highB)

	assert.Equal(t, 4, q.Length())
	assert.Same(t, highA, q.WakeupOne()) // highest prio, arrived first among ties
	assert.Same(t, highB, q.WakeupOne())
	assert.Same(t, mid, q.WakeupOne())
	assert.Same(t, low, q.WakeupOne())
	assert.Nil(t, q.WakeupOne())
}

func TestWaiterQueueHeadDoesNotRemove(t *testing.T) {
	var q WaiterQueue
	a := &Thread{name: "a", dynPrio: 5}
	q.Add(a)

	assert.Same(t, a, q.Head())
	assert.Equal(t, 1, q.Length())
}

func TestWaiterQueueRemoveDetachesSpecificThread(t *testing.T) {
	var q WaiterQueue
	a := &Thread{name: "a", dynPrio: 5}
	b := &Thread{name: "b", dynPrio: 5}
	q.Add(a)
	q.Add(b)

	q.Remove(a)

	assert.Equal(t, 1, q.Length())
	assert.Same(t, b, q.Head())
}

func TestWaiterQueueWakeupAllReturnsInOrder(t *testing.T) {
	var q WaiterQueue
	a := &Thread{name: "a", dynPrio: 10}
	b := &Thread{name: "b", dynPrio: 20}
	q.Add(a)
	q.Add(b)

	all := q.WakeupAll()
	assert.Equal(t, []*Thread{b, a}, all)
	assert.True(t, q.Empty())
}

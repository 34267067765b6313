package rtos

import (
	"testing"
	"time"

	"github.com/micro-os-plus/micro-os-plus-xpack/arch/host"
)

// newTestScheduler builds a Scheduler on the real host port, started and
// ticking at a fast rate so timeout-bearing tests do not need to wait long.
func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	allOpts := append([]Option{WithSystickFrequency(2000)}, opts...)
	s := NewScheduler(host.New(), allOpts...)
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

// await blocks on ch for up to timeout, failing the test on expiry.
func await[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatal("timed out waiting for signal")
		var zero T
		return zero
	}
}

const testTimeout = 500 * time.Millisecond

// Package klog wraps github.com/joeycumines/logiface with the stumpy
// zero-allocation backend so kernel call sites never import logiface or
// stumpy directly.
package klog

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger emits structured trace events for kernel state transitions.
//
// A nil *Logger is a valid, fully silent logger: every method on it is a
// no-op, mirroring the teacher's "log hal.Logger" fields that early-return
// when unset.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New builds a Logger writing newline-delimited JSON to w.
func New(w logiface.Writer[*stumpy.Event]) *Logger {
	return &Logger{
		l: stumpy.L.New(
			stumpy.L.WithWriter(w),
		),
	}
}

// Discard returns a Logger that formats events but writes them nowhere,
// useful for benchmarking the logging overhead in isolation.
func Discard() *Logger {
	return &Logger{
		l: stumpy.L.New(
			stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(*stumpy.Event) error { return nil })),
		),
	}
}

func (lg *Logger) enabled() bool { return lg != nil && lg.l != nil }

// ThreadEvent logs a thread state transition at debug level.
func (lg *Logger) ThreadEvent(name, transition string, prio int) {
	if !lg.enabled() {
		return
	}
	lg.l.Debug().
		Str("thread", name).
		Str("transition", transition).
		Int("dyn_prio", prio).
		Log("thread state change")
}

// PrimitiveEvent logs a synchronization-primitive state change at debug level.
func (lg *Logger) PrimitiveEvent(kind, op string, fields map[string]any) {
	if !lg.enabled() {
		return
	}
	b := lg.l.Debug().Str("kind", kind).Str("op", op)
	for k, v := range fields {
		b = b.Interface(k, v)
	}
	b.Log("primitive state change")
}

// Fatal logs a kernel-invariant violation at error level before the panic
// hook runs.
func (lg *Logger) Fatal(reason string, err error) {
	if !lg.enabled() {
		return
	}
	b := lg.l.Err()
	if err != nil {
		b = b.Err(err)
	}
	b.Log(reason)
}

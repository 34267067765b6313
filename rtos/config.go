package rtos

import "github.com/micro-os-plus/micro-os-plus-xpack/internal/klog"

// Config carries the build-time options of spec.md §6, translated into a
// runtime-constructed struct instead of compile-time macros.
type Config struct {
	// ContextSwitchStats enables the context-switch counter on every thread.
	ContextSwitchStats bool
	// CPUCycleStats is carried for configuration parity; no cpu-cycle
	// counter is maintained, whatever its value.
	CPUCycleStats bool
	// DefaultStackBytes is the stack size recorded for every created thread.
	DefaultStackBytes int
	// MinStackBytes is carried for configuration parity; thread creation
	// does not read it.
	MinStackBytes int
	// SystickFrequencyHz is the tick frequency of the monotonic clock.
	SystickFrequencyHz int
	// PriorityLevels bounds the number of distinct priority levels the
	// scheduler's ready set indexes directly.
	PriorityLevels int
	// MaxInheritanceChainDepth bounds the priority-inheritance propagation
	// walk across blocked-owner chains (spec.md §9).
	MaxInheritanceChainDepth int
	// Logger receives structured trace events for every observable state
	// change. A nil Logger is a no-op.
	Logger *klog.Logger
}

// DefaultConfig returns the configuration used when NewScheduler is called
// without options.
func DefaultConfig() Config {
	return Config{
		ContextSwitchStats:       true,
		CPUCycleStats:            false,
		DefaultStackBytes:        4096,
		MinStackBytes:            256,
		SystickFrequencyHz:       1000,
		PriorityLevels:           int(PriorityRealtime) + 1,
		MaxInheritanceChainDepth: 8,
	}
}

// Option configures a Config in the functional-option style used throughout
// the reference services this kernel was ported from.
type Option func(*Config)

// WithContextSwitchStats toggles the context-switch counter.
func WithContextSwitchStats(enabled bool) Option {
	return func(c *Config) { c.ContextSwitchStats = enabled }
}

// WithCPUCycleStats sets Config.CPUCycleStats, which no counter reads.
func WithCPUCycleStats(enabled bool) Option {
	return func(c *Config) { c.CPUCycleStats = enabled }
}

// WithStackSizes sets the default and minimum stack sizes.
func WithStackSizes(defaultBytes, minBytes int) Option {
	return func(c *Config) {
		c.DefaultStackBytes = defaultBytes
		c.MinStackBytes = minBytes
	}
}

// WithSystickFrequency sets the monotonic clock's tick frequency.
func WithSystickFrequency(hz int) Option {
	return func(c *Config) { c.SystickFrequencyHz = hz }
}

// WithPriorityLevels sets the number of priority levels the ready set indexes.
func WithPriorityLevels(levels int) Option {
	return func(c *Config) { c.PriorityLevels = levels }
}

// WithMaxInheritanceChainDepth bounds the priority-inheritance propagation walk.
func WithMaxInheritanceChainDepth(depth int) Option {
	return func(c *Config) { c.MaxInheritanceChainDepth = depth }
}

// WithLogger attaches a structured logger. A nil logger disables tracing.
func WithLogger(l *klog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func (c *Config) apply(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
}

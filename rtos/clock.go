package rtos

// ClockID distinguishes the two clock instances of spec.md §4.4.
type ClockID int

const (
	// SysClock is the monotonic tick clock driving timeouts.
	SysClock ClockID = iota
	// RTClock is the adjustable real-time clock.
	RTClock
)

// Clock tracks ticks and drives the scheduler's TimeoutQueue. sysclock is
// monotonic; rtc additionally carries a signed epoch offset applied on top
// of the same tick base.
type Clock struct {
	nowTicks    uint64
	epochOffset int64
	timeouts    TimeoutQueue
}

// Now returns the current tick count of id. For RTClock this is
// steady_now() + epoch_offset.
func (c *Clock) Now(id ClockID) uint64 {
	if id == RTClock {
		return uint64(int64(c.nowTicks) + c.epochOffset)
	}
	return c.nowTicks
}

// SteadyNow returns the monotonic tick count, ignoring any rtc adjustment.
func (c *Clock) SteadyNow() uint64 { return c.nowTicks }

// SetEpochOffset adjusts the real-time clock without affecting the
// monotonic tick base used for timeouts.
func (c *Clock) SetEpochOffset(offset int64) { c.epochOffset = offset }

// advance moves the monotonic tick forward by one and returns the set of
// timeout records that are now due. Must be called with the scheduler's
// critical section held.
func (c *Clock) advance() []*timeoutRecord {
	c.nowTicks++
	return c.timeouts.CheckWakeup(c.nowTicks)
}

// DurationToTicks rounds a microsecond duration up to whole ticks, given the
// configured systick frequency, matching the original's round-up conversion
// helpers.
func DurationToTicks(micros uint64, systickFrequencyHz int) uint64 {
	if systickFrequencyHz <= 0 {
		return micros
	}
	ticksPerSecond := uint64(systickFrequencyHz)
	// ceil(micros * ticksPerSecond / 1_000_000)
	num := micros * ticksPerSecond
	return (num + 999_999) / 1_000_000
}

// Package clock provides the monotonic microsecond time source used by the
// control loop, the encoder edge handlers and the ultrasonic echo timer.
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic microsecond timestamp source.
type Clock interface {
	// NowMicros returns microseconds since the clock was created.
	NowMicros() uint64
	// Sleep pauses the caller for at least d.
	Sleep(d time.Duration)
}

// Elapsed returns the time between two timestamps, or zero if to is before
// from.
func Elapsed(from, to uint64) time.Duration {
	if to <= from {
		return 0
	}
	return time.Duration(to-from) * time.Microsecond
}

// Real is a Clock backed by the runtime's monotonic clock.
type Real struct {
	start time.Time
}

func New() *Real {
	return &Real{start: time.Now()}
}

var _ Clock = (*Real)(nil)

func (c *Real) NowMicros() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

func (c *Real) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Fake is a manually driven Clock for tests.  Sleep advances the fake time
// instead of blocking.
type Fake struct {
	lock sync.Mutex
	now  uint64
}

func NewFake(startMicros uint64) *Fake {
	return &Fake{now: startMicros}
}

var _ Clock = (*Fake)(nil)

func (f *Fake) NowMicros() uint64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.now
}

func (f *Fake) Sleep(d time.Duration) {
	f.Advance(d)
}

// Set jumps the clock to an absolute timestamp.
func (f *Fake) Set(micros uint64) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.now = micros
}

func (f *Fake) Advance(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.now += uint64(d.Microseconds())
}

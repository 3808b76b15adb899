// Package encoder turns slotted-disk wheel encoder edges into distance and
// speed.
//
// OnPulseEdge is called from the edge-interrupt context (a GPIO watcher
// goroutine on Linux, a pin interrupt on the Pico) while the control loop
// reads Snapshot concurrently, so every field access is under a short lock:
// a mutex on Linux, interrupts disabled under TinyGo.
package encoder

import (
	"time"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
)

// State is a consistent copy of one wheel's odometry.
type State struct {
	PulseCount            int
	IncrementalDistanceCM float64
	// TotalDistanceCM never decreases; ResetCounters leaves it alone.
	TotalDistanceCM float64
	// SpeedCMPerSec is the speed implied by the last two pulses.  It is not
	// decayed while the wheel is stationary; check LastPulseMicros for
	// staleness.
	SpeedCMPerSec   float64
	SpeedValid      bool
	LastPulseMicros uint64
}

type Tracker struct {
	distancePerPulseCM float64

	lock       edgeLock
	state      State
	seenPulses bool
}

func NewTracker(g chassis.Geometry) *Tracker {
	return &Tracker{
		distancePerPulseCM: g.DistancePerPulseCM(),
	}
}

// OnPulseEdge records one slot edge seen at the given clock timestamp.
func (t *Tracker) OnPulseEdge(atMicros uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	s := &t.state
	s.PulseCount++
	s.IncrementalDistanceCM += t.distancePerPulseCM
	s.TotalDistanceCM += t.distancePerPulseCM

	if t.seenPulses && atMicros > s.LastPulseMicros {
		dt := float64(atMicros-s.LastPulseMicros) / 1e6
		s.SpeedCMPerSec = t.distancePerPulseCM / dt
		s.SpeedValid = true
	}
	s.LastPulseMicros = atMicros
	t.seenPulses = true
}

func (t *Tracker) Snapshot() State {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.state
}

// ResetCounters zeroes the pulse count and the incremental distance at the
// start of a new distance-limited phase.
func (t *Tracker) ResetCounters() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.state.PulseCount = 0
	t.state.IncrementalDistanceCM = 0
}

// SinceLastPulse reports how long ago the last edge was seen.  ok is false if
// the wheel has never produced an edge.
func (t *Tracker) SinceLastPulse(nowMicros uint64) (d time.Duration, ok bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.seenPulses {
		return 0, false
	}
	return clock.Elapsed(t.state.LastPulseMicros, nowMicros), true
}

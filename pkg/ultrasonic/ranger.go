// Package ultrasonic measures obstacle distance with an HC-SR04 style
// ultrasonic ranger and smooths it with the kalman filter.
package ultrasonic

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/kalman"
)

const (
	SpeedOfSoundCMPerMicro = 0.0343

	// MeasurementTimeout is the longest echo pulse accepted as a reading.
	MeasurementTimeout = 25 * time.Millisecond
	// DefaultEchoTimeout bounds the wait for a complete echo after a trigger.
	DefaultEchoTimeout = 15 * time.Millisecond
)

// Driver fires the trigger and waits for the echo.  ok is false on timeout.
type Driver interface {
	TriggerAndWaitEcho() (width time.Duration, ok bool)
}

// PulseWidthToCM converts a round-trip echo width into a one-way distance.
func PulseWidthToCM(width time.Duration) float64 {
	return float64(width.Microseconds()) * SpeedOfSoundCMPerMicro / 2
}

// Reading is the outcome of one measurement.
type Reading struct {
	RawCM      float64
	FilteredCM float64
	// Valid is false when the echo timed out; FilteredCM is then the previous
	// estimate.
	Valid bool
	// Accepted is false when the raw distance was outside the sensor range
	// and the filter ignored it.
	Accepted bool
}

type Ranger struct {
	driver Driver
	filter *kalman.Filter
	clock  clock.Clock
	log    *log.Entry

	lastAliveMicros     uint64
	consecutiveTimeouts int
}

func NewRanger(driver Driver, filter *kalman.Filter, clk clock.Clock) *Ranger {
	return &Ranger{
		driver:          driver,
		filter:          filter,
		clock:           clk,
		log:             log.WithField("component", "ultrasonic"),
		lastAliveMicros: clk.NowMicros(),
	}
}

// MeasureDistance returns the filtered distance in cm.  A timed-out
// measurement returns the last estimate rather than zero.
func (r *Ranger) MeasureDistance() float64 {
	return r.Measure().FilteredCM
}

func (r *Ranger) Measure() Reading {
	width, ok := r.driver.TriggerAndWaitEcho()
	if !ok {
		r.consecutiveTimeouts++
		if responder, canTell := r.driver.(interface{ Responded() bool }); canTell && responder.Responded() {
			// Echo line went high but the pulse was too long: nothing in range.
			r.lastAliveMicros = r.clock.NowMicros()
		}
		return Reading{FilteredCM: r.filter.Estimate()}
	}

	r.consecutiveTimeouts = 0
	r.lastAliveMicros = r.clock.NowMicros()

	raw := PulseWidthToCM(width)
	accepted := r.filter.Update(raw)
	reading := Reading{
		RawCM:      raw,
		FilteredCM: r.filter.Estimate(),
		Valid:      true,
		Accepted:   accepted,
	}
	r.log.WithFields(log.Fields{
		"raw":      raw,
		"filtered": reading.FilteredCM,
	}).Debug("Ultrasonic reading")
	return reading
}

// SilentFor is how long the sensor has gone without any sign of life.
func (r *Ranger) SilentFor() time.Duration {
	return clock.Elapsed(r.lastAliveMicros, r.clock.NowMicros())
}

func (r *Ranger) ConsecutiveTimeouts() int {
	return r.consecutiveTimeouts
}

func (r *Ranger) Filter() *kalman.Filter {
	return r.filter
}

package ultrasonic

import (
	"sync/atomic"
	"time"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	log "github.com/sirupsen/logrus"
)

// EchoTimer captures the echo pulse from edge timestamps.  OnEdge runs in the
// edge-interrupt context, everything else in the control loop; all shared
// fields are atomics.
type EchoTimer struct {
	maxWidthMicros uint64

	riseMicros  atomic.Uint64
	widthMicros atomic.Uint64
	valid       atomic.Bool
	responded   atomic.Bool
}

func NewEchoTimer() *EchoTimer {
	return &EchoTimer{
		maxWidthMicros: uint64(MeasurementTimeout.Microseconds()),
	}
}

// Arm clears the previous result before a trigger pulse.
func (e *EchoTimer) Arm() {
	e.valid.Store(false)
	e.responded.Store(false)
	e.widthMicros.Store(0)
	e.riseMicros.Store(0)
}

// OnEdge is the echo pin's edge handler.
func (e *EchoTimer) OnEdge(rising bool, atMicros uint64) {
	if rising {
		e.riseMicros.Store(atMicros)
		e.valid.Store(false)
		e.responded.Store(true)
		return
	}
	// A falling edge without a rise since Arm belongs to an earlier trigger.
	if !e.responded.Load() {
		return
	}
	start := e.riseMicros.Load()
	if atMicros > start {
		width := atMicros - start
		e.widthMicros.Store(width)
		e.valid.Store(width < e.maxWidthMicros)
	}
}

// Result returns the captured pulse width once a complete, in-bounds pulse
// has been seen.
func (e *EchoTimer) Result() (time.Duration, bool) {
	if !e.valid.Load() {
		return 0, false
	}
	return time.Duration(e.widthMicros.Load()) * time.Microsecond, true
}

// Responded reports whether the sensor raised the echo line since Arm.
func (e *EchoTimer) Responded() bool {
	return e.responded.Load()
}

// Trigger emits the sensor's trigger pulse.
type Trigger interface {
	Pulse() error
}

// EdgeDriver implements Driver on top of a trigger output and an EchoTimer fed
// by edge interrupts.  The wait for the echo is a bounded spin.
type EdgeDriver struct {
	Trigger Trigger
	Echo    *EchoTimer
	Clock   clock.Clock
	Timeout time.Duration
	Poll    time.Duration
}

func NewEdgeDriver(trigger Trigger, echo *EchoTimer, clk clock.Clock, timeout time.Duration) *EdgeDriver {
	if timeout <= 0 {
		timeout = DefaultEchoTimeout
	}
	return &EdgeDriver{
		Trigger: trigger,
		Echo:    echo,
		Clock:   clk,
		Timeout: timeout,
		Poll:    50 * time.Microsecond,
	}
}

var _ Driver = (*EdgeDriver)(nil)

func (d *EdgeDriver) TriggerAndWaitEcho() (time.Duration, bool) {
	d.Echo.Arm()
	if err := d.Trigger.Pulse(); err != nil {
		log.WithError(err).Warn("Ultrasonic trigger failed")
		return 0, false
	}
	deadline := d.Clock.NowMicros() + uint64(d.Timeout.Microseconds())
	for {
		if width, ok := d.Echo.Result(); ok {
			return width, true
		}
		if d.Clock.NowMicros() >= deadline {
			return 0, false
		}
		d.Clock.Sleep(d.Poll)
	}
}

// Responded reports whether the last trigger produced any echo activity.
// A sensor with nothing in range still raises the echo line; a disconnected
// one does not.
func (d *EdgeDriver) Responded() bool {
	return d.Echo.Responded()
}

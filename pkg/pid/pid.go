// Package pid is the discrete PID used to keep the left wheel's speed matched
// to the right wheel's.
//
// The controller assumes it is called at a roughly constant cadence: the
// integral and derivative terms are not scaled by the measured loop time.
package pid

import (
	"math"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clamp"
)

const (
	DefaultKp          = 0.7
	DefaultKi          = 0.02
	DefaultKd          = 0.01
	DefaultMaxIntegral = 43.7

	// MaxDutyCycle leaves headroom below full drive.
	MaxDutyCycle = 0.99
	MinDutyCycle = 0.0
)

type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

func DefaultGains() Gains {
	return Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd}
}

// ComputeDutyCycle runs one PID step, updating the caller's integral and
// previous-error accumulators in place.  The result is always in
// [MinDutyCycle, MaxDutyCycle].
func ComputeDutyCycle(g Gains, maxIntegral, target, current float64, integral, prevError *float64) float64 {
	err := target - current
	if math.IsNaN(err) || math.IsInf(err, 0) {
		// Leave the accumulators untouched so one bad sample can't poison them.
		return MinDutyCycle
	}

	*integral = clamp.Symmetric(*integral+err, maxIntegral)
	derivative := err - *prevError

	duty := g.Kp*err + g.Ki*(*integral) + g.Kd*derivative
	*prevError = err

	return clamp.Value(duty, MinDutyCycle, MaxDutyCycle)
}

// Controller owns one wheel's PID accumulators.
type Controller struct {
	Gains       Gains
	MaxIntegral float64

	integral  float64
	prevError float64
}

func New(g Gains, maxIntegral float64) *Controller {
	if maxIntegral <= 0 {
		maxIntegral = DefaultMaxIntegral
	}
	return &Controller{Gains: g, MaxIntegral: maxIntegral}
}

func (c *Controller) Update(target, current float64) float64 {
	return ComputeDutyCycle(c.Gains, c.MaxIntegral, target, current, &c.integral, &c.prevError)
}

// Reset clears the accumulators at the start of a new forward phase.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
}

func (c *Controller) Integral() float64 {
	return c.integral
}

func (c *Controller) PrevError() float64 {
	return c.prevError
}

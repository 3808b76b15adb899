// Package motor defines the interface the controller drives the wheels
// through, plus test and dry-run implementations.
package motor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clamp"
)

var ErrUnknownWheel = errors.New("unknown wheel")

// Actuator sets a wheel's direction and PWM duty cycle.  Calls are
// synchronous; an error means the output could not be driven.
type Actuator interface {
	SetDirection(w chassis.Wheel, forward bool) error
	SetDutyCycle(w chassis.Wheel, duty float64) error
}

// Command is one wheel's drive request.
type Command struct {
	Wheel     chassis.Wheel
	Forward   bool
	DutyCycle float64
}

func (c Command) String() string {
	dir := "fwd"
	if !c.Forward {
		dir = "rev"
	}
	return fmt.Sprintf("%v %s %.2f", c.Wheel, dir, c.DutyCycle)
}

// Apply sets the direction then the duty cycle, which is clamped to [0, 1].
func (c Command) Apply(a Actuator) error {
	if err := a.SetDirection(c.Wheel, c.Forward); err != nil {
		return err
	}
	return a.SetDutyCycle(c.Wheel, clamp.Value(c.DutyCycle, 0, 1))
}

// Stop zeroes both wheels' duty cycles.  Both wheels are attempted even if
// the first fails; the first error is returned.
func Stop(a Actuator) error {
	var firstErr error
	for _, w := range chassis.Wheels {
		if err := a.SetDutyCycle(w, 0); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CheckWheel returns ErrUnknownWheel for out-of-range wheel values.
func CheckWheel(w chassis.Wheel) error {
	if !w.Valid() {
		return errors.Wrapf(ErrUnknownWheel, "wheel %d", int(w))
	}
	return nil
}

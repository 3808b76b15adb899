// Package hardware owns the robot's devices for the lifetime of the process:
// the edge watchers that feed the encoder trackers and echo timer, the
// ultrasonic trigger, the motor driver and the buzzer.
package hardware

import (
	"context"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
	"github.com/firdauzbk/RoboticCarP3E/pkg/ultrasonic"
)

type Interface interface {
	// Start launches the edge watchers.  They stop when ctx is cancelled.
	Start(ctx context.Context)

	Clock() clock.Clock
	Ranger() *ultrasonic.Ranger
	Encoders() chassis.PerWheel[*encoder.Tracker]
	Motors() motor.Actuator
	Alerter() motion.Alerter

	// Shutdown zeroes the motors and releases the devices.
	Shutdown()
}

// Sensors bundles the hardware's sensors for the state machine.
func Sensors(hw Interface) motion.Sensors {
	enc := hw.Encoders()
	return motion.Sensors{
		Ranger: hw.Ranger(),
		Wheels: chassis.PerWheel[motion.Odometer]{enc[chassis.Left], enc[chassis.Right]},
	}
}

type nopAlerter struct{}

func (nopAlerter) Alert() {}

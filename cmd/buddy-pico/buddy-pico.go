//go:build tinygo

// Command buddy-pico is the controller built with TinyGo for the Pico W.  The
// pinout is fixed to the robot's wiring; tunables are the compiled-in
// defaults.
package main

import (
	"context"
	"machine"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/drivers/buzzer"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/kalman"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
	"github.com/firdauzbk/RoboticCarP3E/pkg/odometry"
	"github.com/firdauzbk/RoboticCarP3E/pkg/ultrasonic"
)

const (
	leftPWMPin  = machine.GP2
	leftIn1Pin  = machine.GP0
	leftIn2Pin  = machine.GP1
	rightPWMPin = machine.GP5
	rightIn1Pin = machine.GP3
	rightIn2Pin = machine.GP4

	triggerPin = machine.GP6
	echoPin    = machine.GP7

	leftEncoderPin  = machine.GP8
	rightEncoderPin = machine.GP9

	buzzerPin = machine.GP18

	pwmPeriodNanos = 1e9 / 100
	alertDuration  = 200 * time.Millisecond
)

func main() {
	// Give the USB serial console a moment to attach.
	time.Sleep(2 * time.Second)
	log.Info("---- Buddy (pico) ----")

	clk := clock.New()
	g := chassis.DefaultGeometry()

	var trackers chassis.PerWheel[*encoder.Tracker]
	for i, p := range []machine.Pin{leftEncoderPin, rightEncoderPin} {
		t := encoder.NewTracker(g)
		trackers[i] = t
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		if err := p.SetInterrupt(machine.PinRising, func(machine.Pin) {
			t.OnPulseEdge(clk.NowMicros())
		}); err != nil {
			log.WithError(err).Fatal("Failed to attach encoder interrupt")
		}
	}

	echo := ultrasonic.NewEchoTimer()
	echoPin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	if err := echoPin.SetInterrupt(machine.PinRising|machine.PinFalling, func(p machine.Pin) {
		echo.OnEdge(p.Get(), clk.NowMicros())
	}); err != nil {
		log.WithError(err).Fatal("Failed to attach echo interrupt")
	}
	triggerPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	triggerPin.Low()

	filter := kalman.New(kalman.DefaultProcessNoise, kalman.DefaultMeasurementNoise,
		kalman.DefaultErrorCovariance, kalman.DefaultInitialEstimateCM)
	driver := ultrasonic.NewEdgeDriver(pinTrigger(triggerPin), echo, clk, ultrasonic.DefaultEchoTimeout)
	ranger := ultrasonic.NewRanger(driver, filter, clk)

	motors, err := newPicoMotors()
	if err != nil {
		log.WithError(err).Fatal("Failed to set up motors")
	}

	buzzerPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	alerter := &picoBuzzer{dev: buzzer.New(buzzerPin)}

	sensors := motion.Sensors{
		Ranger: ranger,
		Wheels: chassis.PerWheel[motion.Odometer]{trackers[chassis.Left], trackers[chassis.Right]},
	}
	m := motion.New(motion.DefaultConfig(), sensors, motors, clk)
	m.SetAlerter(alerter)
	odo := odometry.New(g)
	m.SetOdometer(odo)

	if err := m.Run(context.Background()); err != nil {
		log.WithError(err).Error("Controller stopped")
	}
	st := m.Status()
	log.WithFields(log.Fields{
		"reason":    st.StopReason,
		"pose":      st.Pose,
		"fromStart": odo.DistanceFromStartCM(),
	}).Info("Mission over")

	// Nothing to return to; keep the wheels zeroed.
	for {
		_ = motor.Stop(motors)
		time.Sleep(time.Second)
	}
}

type pinTrigger machine.Pin

func (t pinTrigger) Pulse() error {
	p := machine.Pin(t)
	p.High()
	time.Sleep(10 * time.Microsecond)
	p.Low()
	return nil
}

type pwm interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

type picoWheel struct {
	pwm      pwm
	channel  uint8
	in1, in2 machine.Pin
}

// picoMotors drives an L298N-style bridge: two direction pins and one PWM
// pin per wheel.
type picoMotors struct {
	wheels chassis.PerWheel[picoWheel]
}

func newPicoMotors() (*picoMotors, error) {
	m := &picoMotors{}
	setups := chassis.PerWheel[struct {
		pwm      pwm
		pin      machine.Pin
		in1, in2 machine.Pin
	}]{
		{machine.PWM1, leftPWMPin, leftIn1Pin, leftIn2Pin},
		{machine.PWM2, rightPWMPin, rightIn1Pin, rightIn2Pin},
	}
	for i, s := range setups {
		if err := s.pwm.Configure(machine.PWMConfig{Period: pwmPeriodNanos}); err != nil {
			return nil, err
		}
		ch, err := s.pwm.Channel(s.pin)
		if err != nil {
			return nil, err
		}
		s.in1.Configure(machine.PinConfig{Mode: machine.PinOutput})
		s.in2.Configure(machine.PinConfig{Mode: machine.PinOutput})
		m.wheels[i] = picoWheel{pwm: s.pwm, channel: ch, in1: s.in1, in2: s.in2}
		m.wheels[i].pwm.Set(ch, 0)
	}
	return m, nil
}

func (m *picoMotors) SetDirection(w chassis.Wheel, forward bool) error {
	if err := motor.CheckWheel(w); err != nil {
		return err
	}
	pw := m.wheels[w]
	pw.in1.Set(forward)
	pw.in2.Set(!forward)
	return nil
}

func (m *picoMotors) SetDutyCycle(w chassis.Wheel, duty float64) error {
	if err := motor.CheckWheel(w); err != nil {
		return err
	}
	pw := m.wheels[w]
	pw.pwm.Set(pw.channel, uint32(duty*float64(pw.pwm.Top())))
	return nil
}

type picoBuzzer struct {
	dev      buzzer.Device
	sounding atomic.Bool
}

func (b *picoBuzzer) Alert() {
	if !b.sounding.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer b.sounding.Store(false)
		_ = b.dev.On()
		time.Sleep(alertDuration)
		_ = b.dev.Off()
	}()
}

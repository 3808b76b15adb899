package hardware

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clamp"
	"github.com/firdauzbk/RoboticCarP3E/pkg/config"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
	"github.com/firdauzbk/RoboticCarP3E/pkg/pca9685"
)

func openMotors(cfg config.MotorsConfig) (motor.Actuator, func() error, error) {
	log.WithField("driver", cfg.Driver).Info("Opening motor driver")
	switch cfg.Driver {
	case config.DriverGPIO:
		m, err := NewGPIOMotors(cfg)
		return m, nil, err
	case config.DriverPCA9685:
		dev, err := pca9685.Open(cfg.I2CDevice, cfg.I2CAddr)
		if err != nil {
			return nil, nil, err
		}
		if err := dev.Configure(cfg.PWMFrequencyHz); err != nil {
			dev.Close()
			return nil, nil, errors.Wrap(err, "failed to configure PCA9685")
		}
		return NewPCA9685Motors(dev, cfg), dev.Close, nil
	case config.DriverDummy:
		return motor.NewDummy(), nil, nil
	}
	return nil, nil, errors.Errorf("unknown motor driver %q", cfg.Driver)
}

type gpioWheel struct {
	pwm, in1, in2 gpio.PinIO
}

// GPIOMotors drives an L298N-style bridge: two direction inputs and a PWM
// enable per wheel.
type GPIOMotors struct {
	lock   sync.Mutex
	wheels chassis.PerWheel[gpioWheel]
	freq   physic.Frequency
}

func NewGPIOMotors(cfg config.MotorsConfig) (*GPIOMotors, error) {
	m := &GPIOMotors{freq: physic.Frequency(cfg.PWMFrequencyHz * float64(physic.Hertz))}
	for w, pins := range map[chassis.Wheel]config.MotorPins{
		chassis.Left:  cfg.Left,
		chassis.Right: cfg.Right,
	} {
		var gw gpioWheel
		var err error
		for _, p := range []struct {
			dst  *gpio.PinIO
			name string
		}{{&gw.pwm, pins.PWMPin}, {&gw.in1, pins.In1Pin}, {&gw.in2, pins.In2Pin}} {
			if *p.dst, err = outputPin(p.name); err != nil {
				return nil, errors.Wrapf(err, "%v motor", w)
			}
		}
		m.wheels[w] = gw
	}
	return m, nil
}

var _ motor.Actuator = (*GPIOMotors)(nil)

func (m *GPIOMotors) SetDirection(w chassis.Wheel, forward bool) error {
	if err := motor.CheckWheel(w); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	gw := m.wheels[w]
	if err := gw.in1.Out(gpio.Level(forward)); err != nil {
		return errors.Wrapf(err, "%v motor direction", w)
	}
	if err := gw.in2.Out(gpio.Level(!forward)); err != nil {
		return errors.Wrapf(err, "%v motor direction", w)
	}
	return nil
}

func (m *GPIOMotors) SetDutyCycle(w chassis.Wheel, duty float64) error {
	if err := motor.CheckWheel(w); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	d := gpio.Duty(clamp.Value(duty, 0, 1) * float64(gpio.DutyMax))
	if err := m.wheels[w].pwm.PWM(d, m.freq); err != nil {
		return errors.Wrapf(err, "%v motor PWM", w)
	}
	return nil
}

// PCA9685Motors drives the same bridge through a PCA9685: the direction
// inputs are channels held fully on or off.
type PCA9685Motors struct {
	lock sync.Mutex
	dev  *pca9685.PCA9685
	pins chassis.PerWheel[config.MotorPins]
}

func NewPCA9685Motors(dev *pca9685.PCA9685, cfg config.MotorsConfig) *PCA9685Motors {
	return &PCA9685Motors{
		dev:  dev,
		pins: chassis.PerWheel[config.MotorPins]{cfg.Left, cfg.Right},
	}
}

var _ motor.Actuator = (*PCA9685Motors)(nil)

func (m *PCA9685Motors) SetDirection(w chassis.Wheel, forward bool) error {
	if err := motor.CheckWheel(w); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	p := m.pins[w]
	if err := m.dev.SetLevel(p.In1Channel, forward); err != nil {
		return errors.Wrapf(err, "%v motor direction", w)
	}
	if err := m.dev.SetLevel(p.In2Channel, !forward); err != nil {
		return errors.Wrapf(err, "%v motor direction", w)
	}
	return nil
}

func (m *PCA9685Motors) SetDutyCycle(w chassis.Wheel, duty float64) error {
	if err := motor.CheckWheel(w); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if err := m.dev.SetDutyCycle(m.pins[w].PWMChannel, duty); err != nil {
		return errors.Wrapf(err, "%v motor PWM", w)
	}
	return nil
}

// Package pca9685 drives the PCA9685 16-channel PWM expander used as an
// alternative motor driver: one channel per wheel for speed, two per wheel
// held fully on or off for direction.
package pca9685

import (
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/io/i2c"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clamp"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.

	NumChannels = 16
	PWMMax      = 4095

	OscillatorHz = 25_000_000

	fullBit = 0x10
)

var ErrBadChannel = errors.New("pca9685 channel out of range")

// RegisterWriter is the subset of an I2C device the driver needs.
type RegisterWriter interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	dev RegisterWriter
	log *log.Entry
}

func Open(deviceFile string, addr int) (*PCA9685, error) {
	if addr == 0 {
		addr = DefaultAddr
	}
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open PCA9685 on %s", deviceFile)
	}
	return New(dev), nil
}

func New(dev RegisterWriter) *PCA9685 {
	return &PCA9685{
		dev: dev,
		log: log.WithField("component", "pca9685"),
	}
}

// PreScale returns the prescaler value for a PWM frequency.
func PreScale(freqHz float64) byte {
	v := math.Round(OscillatorHz/(float64(PWMMax+1)*freqHz)) - 1
	return byte(clamp.Value(v, 3, 255))
}

// Configure sets the PWM frequency and enables the outputs.
func (p *PCA9685) Configure(freqHz float64) (err error) {
	prescale := PreScale(freqHz)
	p.log.WithFields(log.Fields{"freqHz": freqHz, "prescale": prescale}).Info("Configuring")

	// Put device to sleep; the prescaler can only be written while asleep.
	if err = p.dev.WriteReg(RegMode1, []byte{0x11}); err != nil {
		return errors.Wrap(err, "sleep")
	}
	if err = p.dev.WriteReg(RegPreScale, []byte{prescale}); err != nil {
		return errors.Wrap(err, "prescale")
	}
	// Trigger a reset
	if err = p.dev.WriteReg(RegMode1, []byte{0x01}); err != nil {
		return errors.Wrap(err, "reset")
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable, with register auto-increment.
	if err = p.dev.WriteReg(RegMode1, []byte{0xa1}); err != nil {
		return errors.Wrap(err, "enable")
	}
	return nil
}

// SetDutyCycle sets a channel's duty cycle in [0, 1].  The ends of the range
// use the full-off and full-on bits so the output is a clean level.
func (p *PCA9685) SetDutyCycle(channel int, duty float64) error {
	if channel < 0 || channel >= NumChannels {
		return errors.Wrapf(ErrBadChannel, "channel %d", channel)
	}
	duty = clamp.Value(duty, 0, 1)

	var regs []byte
	switch {
	case duty == 0:
		regs = []byte{0, 0, 0, fullBit}
	case duty == 1:
		regs = []byte{0, fullBit, 0, 0}
	default:
		off := uint16(clamp.Value(math.Round(duty*(PWMMax+1)), 1, PWMMax))
		regs = []byte{0, 0, byte(off & 0xff), byte(off >> 8)}
	}
	addr := RegLEDBase + channel*4
	return p.dev.WriteReg(byte(addr), regs)
}

// SetLevel drives a channel fully on or off, for direction inputs.
func (p *PCA9685) SetLevel(channel int, high bool) error {
	if high {
		return p.SetDutyCycle(channel, 1)
	}
	return p.SetDutyCycle(channel, 0)
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

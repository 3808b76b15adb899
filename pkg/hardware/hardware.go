package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/config"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
	"github.com/firdauzbk/RoboticCarP3E/pkg/sound"
	"github.com/firdauzbk/RoboticCarP3E/pkg/ultrasonic"
)

// edgePollTimeout bounds each WaitForEdge so the watchers notice
// cancellation.
const edgePollTimeout = 100 * time.Millisecond

// Hardware is the robot on a Linux SBC, with devices reached through periph.
type Hardware struct {
	clock    *clock.Real
	encoders chassis.PerWheel[*encoder.Tracker]
	echo     *ultrasonic.EchoTimer
	ranger   *ultrasonic.Ranger
	motors   motor.Actuator
	closer   func() error
	alerter  motion.Alerter

	encoderPins chassis.PerWheel[gpio.PinIO]
	echoPin     gpio.PinIO

	watchers sync.WaitGroup
	log      *log.Entry
}

func New(cfg config.Config) (*Hardware, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph init failed")
	}

	h := &Hardware{
		clock: clock.New(),
		echo:  ultrasonic.NewEchoTimer(),
		log:   log.WithField("component", "hardware"),
	}

	var err error
	for w, name := range map[chassis.Wheel]string{
		chassis.Left:  cfg.Encoders.LeftPin,
		chassis.Right: cfg.Encoders.RightPin,
	} {
		h.encoders[w] = encoder.NewTracker(cfg.Chassis)
		if h.encoderPins[w], err = inputPin(name, gpio.PullUp, gpio.RisingEdge); err != nil {
			return nil, errors.Wrapf(err, "%v encoder", w)
		}
	}

	if h.echoPin, err = inputPin(cfg.Ranger.EchoPin, gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, errors.Wrap(err, "ultrasonic echo")
	}
	triggerPin, err := outputPin(cfg.Ranger.TriggerPin)
	if err != nil {
		return nil, errors.Wrap(err, "ultrasonic trigger")
	}
	driver := ultrasonic.NewEdgeDriver(&pinTrigger{pin: triggerPin}, h.echo, h.clock, cfg.Ranger.EchoTimeout)
	h.ranger = ultrasonic.NewRanger(driver, cfg.NewKalmanFilter(), h.clock)

	if h.alerter, err = openAlerter(cfg.Alert); err != nil {
		return nil, err
	}

	// Opened last: nothing after this can fail and leave the driver open.
	if h.motors, h.closer, err = openMotors(cfg.Motors); err != nil {
		return nil, err
	}
	return h, nil
}

func openAlerter(cfg config.AlertConfig) (motion.Alerter, error) {
	switch {
	case cfg.SoundFile != "":
		return sound.NewPlayer(cfg.SoundFile), nil
	case cfg.BuzzerPin != "":
		buzzerPin, err := outputPin(cfg.BuzzerPin)
		if err != nil {
			return nil, errors.Wrap(err, "buzzer")
		}
		return NewBuzzer(buzzerPin, cfg.Duration), nil
	}
	return nopAlerter{}, nil
}

var _ Interface = (*Hardware)(nil)

func (h *Hardware) Start(ctx context.Context) {
	for _, w := range chassis.Wheels {
		h.watchers.Add(1)
		go h.watchEncoder(ctx, w)
	}
	h.watchers.Add(1)
	go h.watchEcho(ctx)
}

func (h *Hardware) watchEncoder(ctx context.Context, w chassis.Wheel) {
	defer h.watchers.Done()
	pin, tracker := h.encoderPins[w], h.encoders[w]
	h.log.WithFields(log.Fields{"wheel": w, "pin": pin}).Info("Encoder watcher started")
	for ctx.Err() == nil {
		if pin.WaitForEdge(edgePollTimeout) {
			tracker.OnPulseEdge(h.clock.NowMicros())
		}
	}
}

func (h *Hardware) watchEcho(ctx context.Context) {
	defer h.watchers.Done()
	h.log.WithField("pin", h.echoPin).Info("Echo watcher started")
	for ctx.Err() == nil {
		if h.echoPin.WaitForEdge(edgePollTimeout) {
			now := h.clock.NowMicros()
			h.echo.OnEdge(h.echoPin.Read() == gpio.High, now)
		}
	}
}

func (h *Hardware) Clock() clock.Clock {
	return h.clock
}

func (h *Hardware) Ranger() *ultrasonic.Ranger {
	return h.ranger
}

func (h *Hardware) Encoders() chassis.PerWheel[*encoder.Tracker] {
	return h.encoders
}

func (h *Hardware) Motors() motor.Actuator {
	return h.motors
}

func (h *Hardware) Alerter() motion.Alerter {
	return h.alerter
}

// Shutdown stops the motors and waits for the watchers, which exit once the
// context passed to Start is cancelled.
func (h *Hardware) Shutdown() {
	if err := motor.Stop(h.motors); err != nil {
		h.log.WithError(err).Error("Failed to stop motors")
	}
	h.watchers.Wait()
	if h.closer != nil {
		if err := h.closer(); err != nil {
			h.log.WithError(err).Warn("Failed to close motor driver")
		}
	}
}

func inputPin(name string, pull gpio.Pull, edge gpio.Edge) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such pin %q", name)
	}
	if err := p.In(pull, edge); err != nil {
		return nil, errors.Wrapf(err, "failed to configure %s as input", name)
	}
	return p, nil
}

func outputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no such pin %q", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "failed to configure %s as output", name)
	}
	return p, nil
}

// pinTrigger raises the trigger line for the sensor's 10µs pulse.
type pinTrigger struct {
	pin gpio.PinOut
}

func (t *pinTrigger) Pulse() error {
	if err := t.pin.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(10 * time.Microsecond)
	return t.pin.Out(gpio.Low)
}

package hardware

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
)

// Buzzer sounds an active buzzer for a fixed time on each alert.  Alerts
// while it is already sounding are ignored.
type Buzzer struct {
	pin      gpio.PinOut
	duration time.Duration
	sounding atomic.Bool
}

func NewBuzzer(pin gpio.PinOut, d time.Duration) *Buzzer {
	return &Buzzer{pin: pin, duration: d}
}

func (b *Buzzer) Alert() {
	if !b.sounding.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer b.sounding.Store(false)
		if err := b.pin.Out(gpio.High); err != nil {
			log.WithError(err).Warn("Buzzer failed")
			return
		}
		time.Sleep(b.duration)
		if err := b.pin.Out(gpio.Low); err != nil {
			log.WithError(err).Warn("Buzzer failed")
		}
	}()
}

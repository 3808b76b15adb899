package motor

import (
	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
)

// Dummy logs commands instead of driving hardware.
type Dummy struct {
	log *log.Entry
}

func NewDummy() *Dummy {
	return &Dummy{log: log.WithField("component", "motor-dummy")}
}

var _ Actuator = (*Dummy)(nil)

func (d *Dummy) SetDirection(w chassis.Wheel, forward bool) error {
	if err := CheckWheel(w); err != nil {
		return err
	}
	d.log.WithFields(log.Fields{"wheel": w, "forward": forward}).Debug("SetDirection")
	return nil
}

func (d *Dummy) SetDutyCycle(w chassis.Wheel, duty float64) error {
	if err := CheckWheel(w); err != nil {
		return err
	}
	d.log.WithFields(log.Fields{"wheel": w, "duty": duty}).Debug("SetDutyCycle")
	return nil
}

package motor

import (
	"sync"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
)

// Call is one recorded actuator call.  Duty is unset for direction calls.
type Call struct {
	Wheel     chassis.Wheel
	Direction bool
	Forward   bool
	Duty      float64
}

// Recorder is an Actuator that remembers every call and the resulting output
// state.  FailWith makes subsequent calls fail.
type Recorder struct {
	lock    sync.Mutex
	calls   []Call
	forward chassis.PerWheel[bool]
	duty    chassis.PerWheel[float64]
	err     error
}

func NewRecorder() *Recorder {
	return &Recorder{forward: chassis.PerWheel[bool]{true, true}}
}

var _ Actuator = (*Recorder)(nil)

func (r *Recorder) SetDirection(w chassis.Wheel, forward bool) error {
	if err := CheckWheel(w); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, Call{Wheel: w, Direction: true, Forward: forward})
	r.forward[w] = forward
	return nil
}

func (r *Recorder) SetDutyCycle(w chassis.Wheel, duty float64) error {
	if err := CheckWheel(w); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, Call{Wheel: w, Duty: duty})
	r.duty[w] = duty
	return nil
}

func (r *Recorder) FailWith(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

func (r *Recorder) Calls() []Call {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls = nil
}

func (r *Recorder) Duty(w chassis.Wheel) float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.duty[w]
}

func (r *Recorder) Forward(w chassis.Wheel) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.forward[w]
}

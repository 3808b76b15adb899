// Package kalman implements the scalar filter used to smooth ultrasonic range
// readings.
//
// It is not a textbook Kalman filter.  Two heuristics reject the glitches an
// HC-SR04 style time-of-flight sensor produces (multi-path echoes, double
// triggers) while still following genuine rapid changes:
//
//   - a large innovation doubles the process noise for that update, and every
//     small innovation resets it to the default;
//   - a very large innovation is blended 70/30 towards the measurement instead
//     of being weighted by the gain.
package kalman

import (
	"math"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clamp"
)

const (
	MinDistanceCM = 2.0
	MaxDistanceCM = 400.0

	DefaultProcessNoise      = 1.0
	DefaultMeasurementNoise  = 0.5
	DefaultErrorCovariance   = 1.0
	DefaultInitialEstimateCM = 20.0

	adaptiveInnovationCM  = 10.0
	jumpInnovationCM      = 50.0
	jumpMeasurementWeight = 0.7
)

// Filter is the per-sensor filter state.  It is owned by the control loop and
// is not safe for concurrent use.
type Filter struct {
	q float64 // process noise
	r float64 // measurement noise
	x float64 // estimate
	p float64 // error covariance
	k float64 // gain
}

// State is a copy of the filter's internals.
type State struct {
	ProcessNoise     float64
	MeasurementNoise float64
	Estimate         float64
	ErrorCovariance  float64
	Gain             float64
}

// New creates a filter.  Non-positive noise or covariance values are replaced
// by the defaults.  The initial estimate is clamped into the sensor range.
func New(q, r, p0, x0 float64) *Filter {
	if q <= 0 {
		q = DefaultProcessNoise
	}
	if r <= 0 {
		r = DefaultMeasurementNoise
	}
	if p0 <= 0 {
		p0 = DefaultErrorCovariance
	}
	return &Filter{
		q: q,
		r: r,
		p: p0,
		x: clamp.Value(x0, MinDistanceCM, MaxDistanceCM),
	}
}

// Update folds a raw distance measurement into the estimate.  Measurements
// outside [MinDistanceCM, MaxDistanceCM] are ignored and Update returns false.
func (f *Filter) Update(measurement float64) bool {
	if math.IsNaN(measurement) || measurement < MinDistanceCM || measurement > MaxDistanceCM {
		return false
	}

	innovation := measurement - f.x

	if math.Abs(innovation) > adaptiveInnovationCM {
		f.q *= 2
	} else {
		f.q = DefaultProcessNoise
	}

	// Predict.
	f.p += f.q

	// Correct.
	f.k = f.p / (f.p + f.r)
	if math.Abs(innovation) < jumpInnovationCM {
		f.x += f.k * innovation
	} else {
		f.x = jumpMeasurementWeight*measurement + (1-jumpMeasurementWeight)*f.x
	}
	f.x = clamp.Value(f.x, MinDistanceCM, MaxDistanceCM)

	f.p *= 1 - f.k
	return true
}

func (f *Filter) Estimate() float64 {
	return f.x
}

func (f *Filter) State() State {
	return State{
		ProcessNoise:     f.q,
		MeasurementNoise: f.r,
		Estimate:         f.x,
		ErrorCovariance:  f.p,
		Gain:             f.k,
	}
}

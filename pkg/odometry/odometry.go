// Package odometry dead-reckons the robot's pose from wheel travel.
//
// The encoders are single channel, so the sign of each wheel's travel comes
// from the direction it was last commanded to turn.
package odometry

import (
	"math"
	"sync"

	"github.com/quartercastle/vector"

	"github.com/firdauzbk/RoboticCarP3E/pkg/angle"
	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
)

// Pose is the robot's position relative to where it started.  Heading 0 is
// the starting direction of travel; positive headings are anticlockwise.
type Pose struct {
	XCM, YCM   float64
	HeadingDeg float64
}

type Odometer struct {
	trackWidthCM float64

	lock      sync.Mutex
	position  vector.Vector
	heading   angle.PlusMinus180
	forward   chassis.PerWheel[bool]
	lastTotal chassis.PerWheel[float64]
	primed    bool
}

func New(g chassis.Geometry) *Odometer {
	return &Odometer{
		trackWidthCM: g.TrackWidthCM,
		position:     vector.Vector{0, 0},
		forward:      chassis.PerWheel[bool]{true, true},
	}
}

// SetDirection records which way a wheel is being driven.
func (o *Odometer) SetDirection(w chassis.Wheel, forward bool) {
	if !w.Valid() {
		return
	}
	o.lock.Lock()
	defer o.lock.Unlock()
	o.forward[w] = forward
}

// Update integrates the travel since the previous call, given each wheel's
// cumulative (monotonic) distance.  The first call only establishes the
// baseline.
func (o *Odometer) Update(totals chassis.PerWheel[float64]) {
	o.lock.Lock()
	defer o.lock.Unlock()

	if !o.primed {
		o.lastTotal = totals
		o.primed = true
		return
	}

	var d chassis.PerWheel[float64]
	for _, w := range chassis.Wheels {
		delta := totals[w] - o.lastTotal[w]
		if delta < 0 {
			delta = 0
		}
		if !o.forward[w] {
			delta = -delta
		}
		d[w] = delta
	}
	o.lastTotal = totals

	dl, dr := d[chassis.Left], d[chassis.Right]
	if dl == 0 && dr == 0 {
		return
	}
	travel := (dl + dr) / 2
	dTheta := (dr - dl) / o.trackWidthCM

	// Advance along the mid-point heading of this step.
	mid := o.heading.Radians() + dTheta/2
	step := vector.Vector{math.Cos(mid), math.Sin(mid)}.Scale(travel)
	o.position = o.position.Add(step)
	o.heading = o.heading.Add(angle.FromRadians(dTheta))
}

func (o *Odometer) Pose() Pose {
	o.lock.Lock()
	defer o.lock.Unlock()
	return Pose{
		XCM:        o.position[0],
		YCM:        o.position[1],
		HeadingDeg: o.heading.Float(),
	}
}

// DistanceFromStartCM is the straight-line distance from the origin.
func (o *Odometer) DistanceFromStartCM() float64 {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.position.Magnitude()
}

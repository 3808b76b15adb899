package chassis

import (
	"fmt"
	"math"
)

const (
	WheelDiameterCM    float64 = 6.6
	SlotsPerRevolution         = 20
	TrackWidthCM       float64 = 11.5
)

type Wheel int

const (
	Left Wheel = iota
	Right
)

var Wheels = [...]Wheel{Left, Right}

func (w Wheel) String() string {
	switch w {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("wheel(%d)", int(w))
}

func (w Wheel) Valid() bool {
	return w == Left || w == Right
}

// PerWheel holds one value for each drive wheel, indexed by Wheel.
type PerWheel[T any] [2]T

// Geometry describes the drive wheels and their slotted encoder disks.
type Geometry struct {
	WheelDiameterCM    float64 `yaml:"wheel_diameter_cm"`
	SlotsPerRevolution int     `yaml:"slots_per_revolution"`
	TrackWidthCM       float64 `yaml:"track_width_cm"`
}

func DefaultGeometry() Geometry {
	return Geometry{
		WheelDiameterCM:    WheelDiameterCM,
		SlotsPerRevolution: SlotsPerRevolution,
		TrackWidthCM:       TrackWidthCM,
	}
}

func (g Geometry) CircumferenceCM() float64 {
	return math.Pi * g.WheelDiameterCM
}

// DistancePerPulseCM is the distance the wheel rim travels between two
// encoder slot edges.
func (g Geometry) DistancePerPulseCM() float64 {
	return g.CircumferenceCM() / float64(g.SlotsPerRevolution)
}

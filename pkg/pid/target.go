package pid

import (
	"fmt"
)

// FallbackStrategy picks the left wheel's target while the right wheel has no
// usable speed reading.
type FallbackStrategy string

const (
	// FallbackFixed targets a constant speed.
	FallbackFixed FallbackStrategy = "fixed"
	// FallbackDutyModel estimates the right wheel's speed from its last
	// commanded duty cycle using a fitted linear model.
	FallbackDutyModel FallbackStrategy = "duty_model"

	DefaultFallbackSpeedCMPerSec = 100.0
	// StationarySpeedCMPerSec is the speed below which the right wheel is
	// treated as not yet moving.
	StationarySpeedCMPerSec = 1.0
)

func (s FallbackStrategy) Valid() bool {
	return s == FallbackFixed || s == FallbackDutyModel
}

// SpeedModel is speed = slope*duty + intercept, as fitted by calibration.
type SpeedModel struct {
	SlopeCMPerSec     float64 `yaml:"slope_cm_per_sec"`
	InterceptCMPerSec float64 `yaml:"intercept_cm_per_sec"`
}

// SpeedAt returns the modelled speed for a duty cycle, never negative.
func (m SpeedModel) SpeedAt(duty float64) float64 {
	v := m.SlopeCMPerSec*duty + m.InterceptCMPerSec
	if v < 0 {
		return 0
	}
	return v
}

func (m SpeedModel) String() string {
	return fmt.Sprintf("speed = %.2f*duty %+.2f cm/s", m.SlopeCMPerSec, m.InterceptCMPerSec)
}

type TargetPolicy struct {
	Strategy      FallbackStrategy `yaml:"strategy"`
	FixedCMPerSec float64          `yaml:"fixed_cm_per_sec"`
	Model         SpeedModel       `yaml:"model"`
}

func DefaultTargetPolicy() TargetPolicy {
	return TargetPolicy{
		Strategy:      FallbackFixed,
		FixedCMPerSec: DefaultFallbackSpeedCMPerSec,
		// Placeholder until dutycalibration has been run on the robot.
		Model: SpeedModel{SlopeCMPerSec: 120, InterceptCMPerSec: -10},
	}
}

// LeftTarget returns the speed the left wheel should be driven towards: the
// right wheel's measured speed once it is moving, the fallback otherwise.
func (p TargetPolicy) LeftTarget(rightSpeed float64, rightSpeedValid bool, rightDuty float64) float64 {
	if rightSpeedValid && rightSpeed >= StationarySpeedCMPerSec {
		return rightSpeed
	}
	if p.Strategy == FallbackDutyModel {
		return p.Model.SpeedAt(rightDuty)
	}
	return p.FixedCMPerSec
}

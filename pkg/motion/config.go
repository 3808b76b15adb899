package motion

import (
	"time"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/pid"
)

// DistanceMeasure selects which encoder reading counts as distance travelled
// in the distance-limited phase.
type DistanceMeasure string

const (
	MeasureRight   DistanceMeasure = "right"
	MeasureAverage DistanceMeasure = "average"
)

func (d DistanceMeasure) Valid() bool {
	return d == MeasureRight || d == MeasureAverage
}

type Config struct {
	ObstacleThresholdCM float64
	TargetDistanceCM    float64

	// InitialDuty is applied when a forward phase starts.
	InitialDuty chassis.PerWheel[float64]

	TurnDuration  time.Duration
	TurnDutyCycle float64

	DistanceMeasure DistanceMeasure
	// SpeedMatchInDistancePhase keeps the left wheel's PID running while
	// driving the fixed distance.
	SpeedMatchInDistancePhase bool

	Gains       pid.Gains
	MaxIntegral float64
	LeftTarget  pid.TargetPolicy

	LoopInterval      time.Duration
	StatusLogInterval time.Duration

	// Zero disables the corresponding safety stop.
	RangerSilenceTimeout time.Duration
	EncoderStallTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		ObstacleThresholdCM:       15,
		TargetDistanceCM:          90,
		InitialDuty:               chassis.PerWheel[float64]{0.94, 0.99},
		TurnDuration:              time.Second,
		TurnDutyCycle:             0.6,
		DistanceMeasure:           MeasureRight,
		SpeedMatchInDistancePhase: true,
		Gains:                     pid.DefaultGains(),
		MaxIntegral:               pid.DefaultMaxIntegral,
		LeftTarget:                pid.DefaultTargetPolicy(),
		LoopInterval:              time.Millisecond,
		StatusLogInterval:         500 * time.Millisecond,
		RangerSilenceTimeout:      500 * time.Millisecond,
		EncoderStallTimeout:       2 * time.Second,
	}
}

package motion

import "fmt"

type State int

const (
	MovingForward State = iota
	TurningRight
	MovingForwardDistance
	Stopped
)

func (s State) String() string {
	switch s {
	case MovingForward:
		return "MovingForward"
	case TurningRight:
		return "TurningRight"
	case MovingForwardDistance:
		return "MovingForwardDistance"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Driving is true for the states that run the wheels forward.
func (s State) Driving() bool {
	return s == MovingForward || s == MovingForwardDistance
}

// StopReason records why the machine entered Stopped.
type StopReason int

const (
	NotStopped StopReason = iota
	TargetReached
	RangerSilent
	EncoderStalled
	ActuatorFailed
	Cancelled
)

func (r StopReason) String() string {
	switch r {
	case NotStopped:
		return "none"
	case TargetReached:
		return "target-reached"
	case RangerSilent:
		return "ranger-silent"
	case EncoderStalled:
		return "encoder-stalled"
	case ActuatorFailed:
		return "actuator-failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("StopReason(%d)", int(r))
}

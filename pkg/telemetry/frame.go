// Package telemetry publishes the robot's direction and speed as text lines
// over TCP and serial, and reads them back for the console viewer.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
)

const (
	directionPrefix = "Direction: "
	speedSeparator  = "; Speed: "

	// MaxDirectionLen is the longest direction a receiver will accept.
	MaxDirectionLen = 39

	DirectionForward = "Forward"
	DirectionRight   = "Right"
	DirectionStop    = "Stop"
)

var ErrMalformedFrame = errors.New("malformed telemetry frame")

// Frame is one telemetry line: "Direction: <dir>; Speed: <cm/s>".
type Frame struct {
	Direction string
	Speed     int
}

func (f Frame) String() string {
	return fmt.Sprintf("Direction: %s; Speed: %d", f.Direction, f.Speed)
}

// Parse reads a frame.  Surrounding whitespace, including the line
// terminator, is ignored.
func Parse(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, directionPrefix)
	if !ok {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "missing direction in %q", line)
	}
	dir, speed, ok := strings.Cut(rest, speedSeparator)
	if !ok || dir == "" || strings.Contains(dir, ";") {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "missing speed in %q", line)
	}
	if len(dir) > MaxDirectionLen {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "direction longer than %d characters", MaxDirectionLen)
	}
	n, err := strconv.Atoi(speed)
	if err != nil {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "bad speed %q", speed)
	}
	return Frame{Direction: dir, Speed: n}, nil
}

// DirectionFor names the way the robot is moving in a given state.
func DirectionFor(s motion.State) string {
	switch s {
	case motion.MovingForward, motion.MovingForwardDistance:
		return DirectionForward
	case motion.TurningRight:
		return DirectionRight
	}
	return DirectionStop
}

// FromStatus builds a frame from the machine status.  Speed is the mean of
// the two wheel speeds, truncated.
func FromStatus(s motion.Status) Frame {
	var sum float64
	for _, w := range chassis.Wheels {
		if s.Wheels[w].SpeedValid {
			sum += s.Wheels[w].SpeedCMPerSec
		}
	}
	speed := int(sum / float64(len(chassis.Wheels)))
	if s.State == motion.Stopped {
		speed = 0
	}
	return Frame{Direction: DirectionFor(s.State), Speed: speed}
}

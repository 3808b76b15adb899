// Package calibration fits the linear speed-from-duty model used as the left
// wheel's fallback speed target, and renders the fit for inspection.
package calibration

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	yaml "gopkg.in/yaml.v2"

	"github.com/firdauzbk/RoboticCarP3E/pkg/pid"
)

var ErrNotEnoughSamples = errors.New("need moving samples at two or more duty cycles")

type Sample struct {
	Duty          float64
	SpeedCMPerSec float64
}

type Result struct {
	Model    pid.SpeedModel
	RSquared float64
	// Used is the number of samples the fit was made from; samples where
	// the wheel did not turn are excluded.
	Used int
}

func (r Result) String() string {
	return fmt.Sprintf("%v (R²=%.3f, %d samples)", r.Model, r.RSquared, r.Used)
}

// Fit does a least-squares fit of speed against duty.  Samples below the
// stationary threshold are dropped: below the motor's deadband the
// relationship isn't linear.
func Fit(samples []Sample) (Result, error) {
	moving := make([]Sample, 0, len(samples))
	duties := map[float64]bool{}
	for _, s := range samples {
		if s.SpeedCMPerSec < pid.StationarySpeedCMPerSec {
			continue
		}
		moving = append(moving, s)
		duties[s.Duty] = true
	}
	if len(duties) < 2 {
		return Result{}, errors.Wrapf(ErrNotEnoughSamples, "%d usable of %d", len(moving), len(samples))
	}
	sort.Slice(moving, func(i, j int) bool { return moving[i].Duty < moving[j].Duty })

	x := make([]float64, len(moving))
	y := make([]float64, len(moving))
	for i, s := range moving {
		x[i] = s.Duty
		y[i] = s.SpeedCMPerSec
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Result{
		Model:    pid.SpeedModel{SlopeCMPerSec: beta, InterceptCMPerSec: alpha},
		RSquared: stat.RSquared(x, y, nil, alpha, beta),
		Used:     len(moving),
	}, nil
}

// Snippet renders the pid.fallback block of the config file that selects the
// fitted model.
func Snippet(r Result) (string, error) {
	doc := map[string]map[string]pid.TargetPolicy{
		"pid": {
			"fallback": {
				Strategy:      pid.FallbackDutyModel,
				FixedCMPerSec: pid.DefaultFallbackSpeedCMPerSec,
				Model:         r.Model,
			},
		},
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal snippet")
	}
	return string(out), nil
}

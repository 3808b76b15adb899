package calibration

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
)

type DistanceSource interface {
	Snapshot() encoder.State
}

type SweepConfig struct {
	Duties []float64
	// Settle is how long the wheel runs at a new duty before measuring.
	Settle  time.Duration
	Measure time.Duration
}

func DefaultSweep() SweepConfig {
	return SweepConfig{
		Duties:  []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.99},
		Settle:  time.Second,
		Measure: 2 * time.Second,
	}
}

// Sweep drives one wheel forward through each duty cycle and measures its
// mean speed from the encoder's total distance.  The wheel is stopped
// afterwards, including on cancellation.
func Sweep(ctx context.Context, cfg SweepConfig, a motor.Actuator, w chassis.Wheel, enc DistanceSource, clk clock.Clock) (samples []Sample, err error) {
	logCtx := log.WithFields(log.Fields{"component": "calibration", "wheel": w})
	defer func() {
		if stopErr := a.SetDutyCycle(w, 0); stopErr != nil && err == nil {
			err = errors.Wrap(stopErr, "failed to stop wheel")
		}
	}()

	if err := a.SetDirection(w, true); err != nil {
		return nil, errors.Wrap(err, "failed to set direction")
	}
	for _, duty := range cfg.Duties {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		if err := a.SetDutyCycle(w, duty); err != nil {
			return samples, errors.Wrapf(err, "failed to set duty %.2f", duty)
		}
		clk.Sleep(cfg.Settle)

		startCM := enc.Snapshot().TotalDistanceCM
		start := clk.NowMicros()
		clk.Sleep(cfg.Measure)
		travelled := enc.Snapshot().TotalDistanceCM - startCM
		elapsed := clock.Elapsed(start, clk.NowMicros())
		if elapsed <= 0 {
			continue
		}

		s := Sample{Duty: duty, SpeedCMPerSec: travelled / elapsed.Seconds()}
		logCtx.WithFields(log.Fields{"duty": duty, "speed": s.SpeedCMPerSec}).Info("Sample")
		samples = append(samples, s)
	}
	return samples, nil
}

package hardware

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/config"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/kalman"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
	"github.com/firdauzbk/RoboticCarP3E/pkg/pid"
	"github.com/firdauzbk/RoboticCarP3E/pkg/ultrasonic"
)

type SimConfig struct {
	// WallDistanceCM is how far ahead the first obstacle is.
	WallDistanceCM float64
	// OpenSpaceCM is the distance ahead once the robot has turned away.
	OpenSpaceCM float64
	// TurnClearDeg is how far the robot must turn to clear the obstacle.
	TurnClearDeg float64
	// Model maps each wheel's duty cycle to its speed.
	Model   pid.SpeedModel
	NoiseCM float64
	Tick    time.Duration
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		WallDistanceCM: 60,
		OpenSpaceCM:    300,
		TurnClearDeg:   60,
		Model:          pid.SpeedModel{SlopeCMPerSec: 60, InterceptCMPerSec: -6},
		NoiseCM:        0.5,
		Tick:           time.Millisecond,
	}
}

// Simulated is an in-process robot: wheel speed follows duty cycle, encoder
// pulses are generated from the distance travelled and the ranger sees a
// wall that gets closer as the robot drives at it.
type Simulated struct {
	cfg      SimConfig
	geometry chassis.Geometry
	clock    clock.Clock
	motors   *motor.Recorder
	encoders chassis.PerWheel[*encoder.Tracker]
	ranger   *ultrasonic.Ranger

	lock         sync.Mutex
	lastMicros   uint64
	partial      chassis.PerWheel[float64]
	wallCM       float64
	headingDeg   float64
	wallHeading  float64
	rng          *rand.Rand
	lastResponse bool

	loops sync.WaitGroup
}

func NewSimulated(cfg config.Config, sim SimConfig, clk clock.Clock) *Simulated {
	s := &Simulated{
		cfg:        sim,
		geometry:   cfg.Chassis,
		clock:      clk,
		motors:     motor.NewRecorder(),
		lastMicros: clk.NowMicros(),
		wallCM:     sim.WallDistanceCM,
		rng:        rand.New(rand.NewSource(1)),
	}
	for _, w := range chassis.Wheels {
		s.encoders[w] = encoder.NewTracker(cfg.Chassis)
	}
	s.ranger = ultrasonic.NewRanger((*simRanger)(s), cfg.NewKalmanFilter(), clk)
	return s
}

var _ Interface = (*Simulated)(nil)

func (s *Simulated) Start(ctx context.Context) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()
		log.WithField("wall", s.cfg.WallDistanceCM).Info("Simulation running")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Advance()
			}
		}
	}()
}

// Advance moves the simulation up to the clock's current time.
func (s *Simulated) Advance() {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.clock.NowMicros()
	dt := clock.Elapsed(s.lastMicros, now).Seconds()
	start := s.lastMicros
	s.lastMicros = now
	if dt <= 0 {
		return
	}

	perPulse := s.geometry.DistancePerPulseCM()
	var signed chassis.PerWheel[float64]
	for _, w := range chassis.Wheels {
		speed := 0.0
		if duty := s.motors.Duty(w); duty > 0 {
			speed = s.cfg.Model.SpeedAt(duty)
		}
		if speed <= 0 {
			continue
		}
		d := speed * dt
		if s.motors.Forward(w) {
			signed[w] = d
		} else {
			signed[w] = -d
		}

		// Emit a pulse at the interpolated time each slot edge passes.
		before := s.partial[w]
		s.partial[w] += d
		for k := 1; float64(k)*perPulse <= s.partial[w]; k++ {
			edgeCM := float64(k)*perPulse - before
			at := start + uint64(edgeCM/speed*1e6)
			s.encoders[w].OnPulseEdge(at)
		}
		s.partial[w] = math.Mod(s.partial[w], perPulse)
	}

	dl, dr := signed[chassis.Left], signed[chassis.Right]
	s.wallCM -= (dl + dr) / 2
	s.headingDeg += (dr - dl) / s.geometry.TrackWidthCM * 180 / math.Pi
	if math.Abs(s.headingDeg-s.wallHeading) >= s.cfg.TurnClearDeg {
		s.wallCM = s.cfg.OpenSpaceCM
		s.wallHeading = s.headingDeg
	}
}

// WallDistanceCM is the true distance to the obstacle ahead.
func (s *Simulated) WallDistanceCM() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.wallCM
}

func (s *Simulated) HeadingDeg() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.headingDeg
}

func (s *Simulated) Clock() clock.Clock {
	return s.clock
}

func (s *Simulated) Ranger() *ultrasonic.Ranger {
	return s.ranger
}

func (s *Simulated) Encoders() chassis.PerWheel[*encoder.Tracker] {
	return s.encoders
}

func (s *Simulated) Motors() motor.Actuator {
	return s.motors
}

func (s *Simulated) Alerter() motion.Alerter {
	return logAlerter{}
}

func (s *Simulated) Shutdown() {
	_ = motor.Stop(s.motors)
	s.loops.Wait()
}

// simRanger answers trigger requests from the simulated wall distance.
type simRanger Simulated

func (r *simRanger) TriggerAndWaitEcho() (time.Duration, bool) {
	s := (*Simulated)(r)
	s.lock.Lock()
	defer s.lock.Unlock()

	s.lastResponse = true
	d := s.wallCM + s.rng.NormFloat64()*s.cfg.NoiseCM
	if d < kalman.MinDistanceCM {
		d = kalman.MinDistanceCM
	}
	if d > kalman.MaxDistanceCM {
		// Nothing in range: the echo outlasts the timeout.
		return 0, false
	}
	us := d * 2 / ultrasonic.SpeedOfSoundCMPerMicro
	return time.Duration(us) * time.Microsecond, true
}

func (r *simRanger) Responded() bool {
	s := (*Simulated)(r)
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastResponse
}

type logAlerter struct{}

func (logAlerter) Alert() {
	log.Info("BEEP: obstacle")
}

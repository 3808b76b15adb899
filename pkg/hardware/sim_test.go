package hardware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/config"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
)

func newSim(t *testing.T) (*Simulated, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(0)
	sim := DefaultSimConfig()
	sim.NoiseCM = 0
	return NewSimulated(config.Default(), sim, clk), clk
}

func run(s *Simulated, clk *clock.Fake, d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += time.Millisecond {
		clk.Advance(time.Millisecond)
		s.Advance()
	}
}

func TestSimDrivesStraight(t *testing.T) {
	s, clk := newSim(t)
	require.NoError(t, motor.Command{Wheel: chassis.Left, Forward: true, DutyCycle: 0.6}.Apply(s.Motors()))
	require.NoError(t, motor.Command{Wheel: chassis.Right, Forward: true, DutyCycle: 0.6}.Apply(s.Motors()))

	run(s, clk, time.Second)

	// 0.6 duty is 30 cm/s in the default model.
	perPulse := chassis.DefaultGeometry().DistancePerPulseCM()
	for _, w := range chassis.Wheels {
		st := s.Encoders()[w].Snapshot()
		assert.InDelta(t, 30, st.TotalDistanceCM, perPulse)
		require.True(t, st.SpeedValid)
		assert.InDelta(t, 30, st.SpeedCMPerSec, 1)
	}
	assert.InDelta(t, 30, s.WallDistanceCM(), 0.01)
	assert.InDelta(t, 0, s.HeadingDeg(), 1e-9)
}

func TestSimPivotClearsWall(t *testing.T) {
	s, clk := newSim(t)
	require.NoError(t, motor.Command{Wheel: chassis.Left, Forward: true, DutyCycle: 0.6}.Apply(s.Motors()))
	require.NoError(t, motor.Command{Wheel: chassis.Right, Forward: false, DutyCycle: 0.6}.Apply(s.Motors()))

	run(s, clk, 50*time.Millisecond)
	assert.Less(t, s.HeadingDeg(), 0.0, "right turn is clockwise")
	assert.Equal(t, 60.0, s.WallDistanceCM())

	run(s, clk, 500*time.Millisecond)
	assert.Equal(t, 300.0, s.WallDistanceCM())
}

func TestSimStationaryWithoutDuty(t *testing.T) {
	s, clk := newSim(t)
	run(s, clk, 100*time.Millisecond)
	assert.Zero(t, s.Encoders()[chassis.Right].Snapshot().PulseCount)
	assert.Equal(t, 60.0, s.WallDistanceCM())
}

func TestSimRangerSeesWall(t *testing.T) {
	s, _ := newSim(t)
	var d float64
	for i := 0; i < 20; i++ {
		d = s.Ranger().MeasureDistance()
	}
	assert.InDelta(t, 60, d, 0.5)
}

func TestSimulatedMission(t *testing.T) {
	s, clk := newSim(t)
	m := motion.New(config.Default().MotionConfig(), Sensors(s), s.Motors(), clk)

	seen := map[motion.State]bool{}
	for i := 0; i < 20000 && m.State() != motion.Stopped; i++ {
		clk.Advance(time.Millisecond)
		s.Advance()
		require.NoError(t, m.Step())
		seen[m.State()] = true
	}

	assert.True(t, seen[motion.TurningRight])
	assert.True(t, seen[motion.MovingForwardDistance])
	st := m.Status()
	require.Equal(t, motion.Stopped, st.State)
	assert.Equal(t, motion.TargetReached, st.StopReason)
	assert.GreaterOrEqual(t, st.Wheels[chassis.Right].IncrementalDistanceCM, 90.0)
}

type fakePin struct {
	gpio.PinOut
	levels chan gpio.Level
}

func (p *fakePin) Out(l gpio.Level) error {
	p.levels <- l
	return nil
}

func TestBuzzerPulses(t *testing.T) {
	pin := &fakePin{levels: make(chan gpio.Level, 4)}
	b := NewBuzzer(pin, 10*time.Millisecond)

	b.Alert()
	b.Alert() // ignored while sounding

	assert.Equal(t, gpio.High, <-pin.levels)
	assert.Equal(t, gpio.Low, <-pin.levels)
	assert.Eventually(t, func() bool { return !b.sounding.Load() }, time.Second, time.Millisecond)
	assert.Empty(t, pin.levels)
}

package encoder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
)

func TestOneRevolution(t *testing.T) {
	g := chassis.DefaultGeometry()
	tr := NewTracker(g)
	for i := 0; i < g.SlotsPerRevolution; i++ {
		tr.OnPulseEdge(uint64(1000 + i*10_000))
	}
	s := tr.Snapshot()
	assert.Equal(t, 20, s.PulseCount)
	assert.InDelta(t, 20.735, s.IncrementalDistanceCM, 0.001)
	assert.InDelta(t, g.CircumferenceCM(), s.TotalDistanceCM, 1e-9)
}

func TestSpeedNeedsTwoPulses(t *testing.T) {
	g := chassis.DefaultGeometry()
	tr := NewTracker(g)

	tr.OnPulseEdge(5_000)
	s := tr.Snapshot()
	assert.False(t, s.SpeedValid)
	assert.Zero(t, s.SpeedCMPerSec)

	tr.OnPulseEdge(15_000)
	s = tr.Snapshot()
	require.True(t, s.SpeedValid)
	assert.InDelta(t, g.DistancePerPulseCM()/0.01, s.SpeedCMPerSec, 1e-9)
}

func TestSpeedIsStaleWithoutPulses(t *testing.T) {
	tr := NewTracker(chassis.DefaultGeometry())
	tr.OnPulseEdge(0)
	tr.OnPulseEdge(10_000)
	speed := tr.Snapshot().SpeedCMPerSec

	// No decay: the last estimate is held until the next edge.
	assert.Equal(t, speed, tr.Snapshot().SpeedCMPerSec)
	d, ok := tr.SinceLastPulse(3_010_000)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestSinceLastPulseBeforeAnyEdge(t *testing.T) {
	tr := NewTracker(chassis.DefaultGeometry())
	_, ok := tr.SinceLastPulse(1_000)
	assert.False(t, ok)
}

func TestDuplicateTimestampKeepsSpeed(t *testing.T) {
	tr := NewTracker(chassis.DefaultGeometry())
	tr.OnPulseEdge(0)
	tr.OnPulseEdge(10_000)
	speed := tr.Snapshot().SpeedCMPerSec
	tr.OnPulseEdge(10_000)
	assert.Equal(t, speed, tr.Snapshot().SpeedCMPerSec)
	assert.Equal(t, 3, tr.Snapshot().PulseCount)
}

func TestResetCountersKeepsTotal(t *testing.T) {
	tr := NewTracker(chassis.DefaultGeometry())
	for i := 0; i < 10; i++ {
		tr.OnPulseEdge(uint64(i * 1000))
	}
	total := tr.Snapshot().TotalDistanceCM

	tr.ResetCounters()
	s := tr.Snapshot()
	assert.Zero(t, s.PulseCount)
	assert.Zero(t, s.IncrementalDistanceCM)
	assert.Equal(t, total, s.TotalDistanceCM)
	assert.True(t, s.SpeedValid)
}

func TestConcurrentEdgesAndReads(t *testing.T) {
	tr := NewTracker(chassis.DefaultGeometry())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			tr.OnPulseEdge(uint64(i * 100))
		}
	}()
	last := 0.0
	for i := 0; i < 1000; i++ {
		s := tr.Snapshot()
		assert.GreaterOrEqual(t, s.TotalDistanceCM, last)
		last = s.TotalDistanceCM
	}
	wg.Wait()
	assert.Equal(t, 1000, tr.Snapshot().PulseCount)
}

func TestEdgesDuringResetKeepTotal(t *testing.T) {
	g := chassis.DefaultGeometry()
	tr := NewTracker(g)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			tr.OnPulseEdge(uint64(i * 100))
		}
	}()
	for i := 0; i < 100; i++ {
		tr.ResetCounters()
		s := tr.Snapshot()
		assert.LessOrEqual(t, s.IncrementalDistanceCM, s.TotalDistanceCM)
	}
	wg.Wait()
	assert.InDelta(t, 1000*g.DistancePerPulseCM(), tr.Snapshot().TotalDistanceCM, 1e-6)
}

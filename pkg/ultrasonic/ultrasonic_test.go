package ultrasonic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/kalman"
)

type scriptedDriver struct {
	widths    []time.Duration
	oks       []bool
	responded bool
	calls     int
}

func (d *scriptedDriver) TriggerAndWaitEcho() (time.Duration, bool) {
	i := d.calls
	d.calls++
	if i >= len(d.widths) {
		return 0, false
	}
	return d.widths[i], d.oks[i]
}

func (d *scriptedDriver) Responded() bool { return d.responded }

func TestPulseWidthToCM(t *testing.T) {
	assert.InDelta(t, 17.15, PulseWidthToCM(1000*time.Microsecond), 1e-9)
	assert.Zero(t, PulseWidthToCM(0))
}

func TestEchoTimerCapturesPulse(t *testing.T) {
	e := NewEchoTimer()
	e.Arm()
	_, ok := e.Result()
	assert.False(t, ok)
	assert.False(t, e.Responded())

	e.OnEdge(true, 1_000)
	assert.True(t, e.Responded())
	_, ok = e.Result()
	assert.False(t, ok, "no result until the falling edge")

	e.OnEdge(false, 1_583)
	width, ok := e.Result()
	require.True(t, ok)
	assert.Equal(t, 583*time.Microsecond, width)
}

func TestEchoTimerIgnoresFallFromEarlierTrigger(t *testing.T) {
	e := NewEchoTimer()
	e.Arm()
	e.OnEdge(true, 1_000)
	e.Arm()
	e.OnEdge(false, 21_000)

	_, ok := e.Result()
	assert.False(t, ok)
	assert.False(t, e.Responded())

	e.OnEdge(true, 30_000)
	e.OnEdge(false, 30_583)
	width, ok := e.Result()
	require.True(t, ok)
	assert.Equal(t, 583*time.Microsecond, width)
}

func TestEchoTimerRejectsOverlongPulse(t *testing.T) {
	e := NewEchoTimer()
	e.Arm()
	e.OnEdge(true, 0)
	e.OnEdge(false, uint64(MeasurementTimeout.Microseconds()))
	_, ok := e.Result()
	assert.False(t, ok)
	assert.True(t, e.Responded())
}

func TestEchoTimerArmClearsResult(t *testing.T) {
	e := NewEchoTimer()
	e.OnEdge(true, 10)
	e.OnEdge(false, 110)
	_, ok := e.Result()
	require.True(t, ok)

	e.Arm()
	_, ok = e.Result()
	assert.False(t, ok)
	assert.False(t, e.Responded())
}

type echoingTrigger struct {
	echo  *EchoTimer
	clk   *clock.Fake
	width time.Duration
	err   error
	fired int
}

func (tr *echoingTrigger) Pulse() error {
	tr.fired++
	if tr.err != nil {
		return tr.err
	}
	if tr.width > 0 {
		start := tr.clk.NowMicros()
		tr.echo.OnEdge(true, start)
		tr.echo.OnEdge(false, start+uint64(tr.width.Microseconds()))
	}
	return nil
}

func TestEdgeDriverReturnsEcho(t *testing.T) {
	clk := clock.NewFake(0)
	echo := NewEchoTimer()
	trig := &echoingTrigger{echo: echo, clk: clk, width: 2 * time.Millisecond}
	d := NewEdgeDriver(trig, echo, clk, 0)

	width, ok := d.TriggerAndWaitEcho()
	require.True(t, ok)
	assert.Equal(t, 2*time.Millisecond, width)
	assert.Equal(t, 1, trig.fired)
	assert.True(t, d.Responded())
}

func TestEdgeDriverTimesOut(t *testing.T) {
	clk := clock.NewFake(0)
	echo := NewEchoTimer()
	trig := &echoingTrigger{echo: echo, clk: clk}
	d := NewEdgeDriver(trig, echo, clk, 0)

	_, ok := d.TriggerAndWaitEcho()
	assert.False(t, ok)
	assert.GreaterOrEqual(t, clk.NowMicros(), uint64(DefaultEchoTimeout.Microseconds()))
	assert.False(t, d.Responded())
}

func TestEdgeDriverTriggerError(t *testing.T) {
	clk := clock.NewFake(0)
	echo := NewEchoTimer()
	trig := &echoingTrigger{echo: echo, clk: clk, err: errors.New("pin busy")}
	d := NewEdgeDriver(trig, echo, clk, time.Millisecond)

	_, ok := d.TriggerAndWaitEcho()
	assert.False(t, ok)
	assert.Zero(t, clk.NowMicros(), "should not wait after a failed trigger")
}

func TestRangerFiltersReadings(t *testing.T) {
	clk := clock.NewFake(0)
	drv := &scriptedDriver{
		widths: []time.Duration{1166 * time.Microsecond},
		oks:    []bool{true},
	}
	r := NewRanger(drv, kalman.New(0, 0, 0, kalman.DefaultInitialEstimateCM), clk)

	reading := r.Measure()
	assert.True(t, reading.Valid)
	assert.True(t, reading.Accepted)
	assert.InDelta(t, 19.9969, reading.RawCM, 1e-4)
	assert.InDelta(t, 20.0, reading.FilteredCM, 0.01)
}

func TestRangerTimeoutKeepsLastEstimate(t *testing.T) {
	clk := clock.NewFake(0)
	drv := &scriptedDriver{
		widths: []time.Duration{1749 * time.Microsecond, 0, 0},
		oks:    []bool{true, false, false},
	}
	r := NewRanger(drv, kalman.New(0, 0, 0, 30), clk)

	first := r.MeasureDistance()
	clk.Advance(100 * time.Millisecond)
	second := r.Measure()
	assert.False(t, second.Valid)
	assert.Equal(t, first, second.FilteredCM)
	assert.Equal(t, first, r.MeasureDistance())
	assert.Equal(t, 2, r.ConsecutiveTimeouts())
}

func TestRangerOutOfRangeIgnored(t *testing.T) {
	clk := clock.NewFake(0)
	drv := &scriptedDriver{
		widths: []time.Duration{24 * time.Millisecond},
		oks:    []bool{true},
	}
	r := NewRanger(drv, kalman.New(0, 0, 0, kalman.DefaultInitialEstimateCM), clk)

	reading := r.Measure()
	assert.True(t, reading.Valid)
	assert.False(t, reading.Accepted)
	assert.Equal(t, kalman.DefaultInitialEstimateCM, reading.FilteredCM)
}

func TestRangerSilence(t *testing.T) {
	clk := clock.NewFake(0)
	drv := &scriptedDriver{}
	r := NewRanger(drv, kalman.New(0, 0, 0, kalman.DefaultInitialEstimateCM), clk)

	clk.Advance(200 * time.Millisecond)
	r.Measure()
	assert.Equal(t, 200*time.Millisecond, r.SilentFor())

	// An echo that rose but never came back in time means open space, not a
	// dead sensor.
	drv.responded = true
	r.Measure()
	assert.Zero(t, r.SilentFor())
	assert.Equal(t, 2, r.ConsecutiveTimeouts())
}

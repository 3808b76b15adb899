package motor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
)

func TestCommandApply(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, Command{Wheel: chassis.Right, Forward: false, DutyCycle: 1.5}.Apply(r))

	want := []Call{
		{Wheel: chassis.Right, Direction: true, Forward: false},
		{Wheel: chassis.Right, Duty: 1},
	}
	if diff := cmp.Diff(want, r.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, r.Forward(chassis.Right))
	assert.True(t, r.Forward(chassis.Left))
}

func TestStopAttemptsBothWheels(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.SetDutyCycle(chassis.Left, 0.5))
	require.NoError(t, r.SetDutyCycle(chassis.Right, 0.7))

	require.NoError(t, Stop(r))
	assert.Zero(t, r.Duty(chassis.Left))
	assert.Zero(t, r.Duty(chassis.Right))
}

func TestRecorderFailure(t *testing.T) {
	r := NewRecorder()
	boom := errors.New("i2c write failed")
	r.FailWith(boom)

	assert.Equal(t, boom, Command{Wheel: chassis.Left, Forward: true, DutyCycle: 0.5}.Apply(r))
	assert.Equal(t, boom, Stop(r))
	assert.Empty(t, r.Calls())
}

func TestUnknownWheel(t *testing.T) {
	for _, a := range []Actuator{NewRecorder(), NewDummy()} {
		err := a.SetDutyCycle(chassis.Wheel(7), 0.5)
		require.Error(t, err)
		assert.Equal(t, ErrUnknownWheel, errors.Cause(err))
		assert.ErrorIs(t, a.SetDirection(chassis.Wheel(-1), true), ErrUnknownWheel)
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "left rev 0.60", Command{Wheel: chassis.Left, DutyCycle: 0.6}.String())
}

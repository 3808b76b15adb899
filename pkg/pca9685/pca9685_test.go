package pca9685

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	reg byte
	buf []byte
}

type fakeDev struct {
	writes []write
	closed bool
	err    error
}

func (d *fakeDev) WriteReg(reg byte, buf []byte) error {
	if d.err != nil {
		return d.err
	}
	d.writes = append(d.writes, write{reg, append([]byte(nil), buf...)})
	return nil
}

func (d *fakeDev) Close() error {
	d.closed = true
	return nil
}

func TestPreScale(t *testing.T) {
	assert.Equal(t, byte(0x79), PreScale(50))
	assert.Equal(t, byte(60), PreScale(100))
	assert.Equal(t, byte(255), PreScale(1))
	assert.Equal(t, byte(3), PreScale(10_000))
}

func TestConfigure(t *testing.T) {
	dev := &fakeDev{}
	require.NoError(t, New(dev).Configure(100))
	assert.Equal(t, []write{
		{RegMode1, []byte{0x11}},
		{RegPreScale, []byte{60}},
		{RegMode1, []byte{0x01}},
		{RegMode1, []byte{0xa1}},
	}, dev.writes)
}

func TestConfigureError(t *testing.T) {
	boom := errors.New("nack")
	err := New(&fakeDev{err: boom}).Configure(100)
	assert.Equal(t, boom, errors.Cause(err))
}

func TestSetDutyCycle(t *testing.T) {
	for _, tc := range []struct {
		name    string
		channel int
		duty    float64
		want    write
	}{
		{"off", 0, 0, write{0x06, []byte{0, 0, 0, 0x10}}},
		{"full", 1, 1, write{0x0a, []byte{0, 0x10, 0, 0}}},
		{"over range", 2, 3, write{0x0e, []byte{0, 0x10, 0, 0}}},
		{"under range", 3, -1, write{0x12, []byte{0, 0, 0, 0x10}}},
		{"half", 15, 0.5, write{0x42, []byte{0, 0, 0x00, 0x08}}},
		{"tiny", 4, 0.00001, write{0x16, []byte{0, 0, 1, 0}}},
		{"nearly full", 4, 0.99999, write{0x16, []byte{0, 0, 0xff, 0x0f}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := &fakeDev{}
			require.NoError(t, New(dev).SetDutyCycle(tc.channel, tc.duty))
			assert.Equal(t, []write{tc.want}, dev.writes)
		})
	}
}

func TestBadChannel(t *testing.T) {
	dev := &fakeDev{}
	p := New(dev)
	assert.ErrorIs(t, p.SetDutyCycle(16, 0.5), ErrBadChannel)
	assert.ErrorIs(t, p.SetLevel(-1, true), ErrBadChannel)
	assert.Empty(t, dev.writes)
}

func TestSetLevelAndClose(t *testing.T) {
	dev := &fakeDev{}
	p := New(dev)
	require.NoError(t, p.SetLevel(5, true))
	require.NoError(t, p.SetLevel(6, false))
	require.NoError(t, p.Close())
	assert.Equal(t, []write{
		{0x1a, []byte{0, 0x10, 0, 0}},
		{0x1e, []byte{0, 0, 0, 0x10}},
	}, dev.writes)
	assert.True(t, dev.closed)
}

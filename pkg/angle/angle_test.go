package angle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFloat(t *testing.T) {
	for _, tc := range []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{540, 180},
		{-725, -5},
		{359.5, -0.5},
	} {
		assert.InDelta(t, tc.want, FromFloat(tc.in).Float(), 1e-9, "FromFloat(%v)", tc.in)
	}
}

func TestArithmeticWraps(t *testing.T) {
	a := FromFloat(170)
	assert.InDelta(t, -170, a.Add(FromFloat(20)).Float(), 1e-9)
	assert.InDelta(t, 160, FromFloat(-170).Sub(FromFloat(30)).Float(), 1e-9)
	assert.InDelta(t, -90, a.AddFloat(100).Float(), 1e-9)
}

func TestRadians(t *testing.T) {
	assert.InDelta(t, math.Pi/2, FromFloat(90).Radians(), 1e-12)
	assert.InDelta(t, -90, FromRadians(-math.Pi/2).Float(), 1e-9)
	assert.InDelta(t, 180, FromRadians(3*math.Pi).Float(), 1e-9)
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvance(t *testing.T) {
	c := NewFake(1000)
	c.Advance(2 * time.Millisecond)
	assert.Equal(t, uint64(3000), c.NowMicros())

	c.Sleep(500 * time.Microsecond)
	assert.Equal(t, uint64(3500), c.NowMicros())

	c.Set(10)
	assert.Equal(t, uint64(10), c.NowMicros())
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, 1100*time.Millisecond, Elapsed(0, 1_100_000))
	assert.Equal(t, time.Duration(0), Elapsed(500, 100))
}

func TestRealIsMonotonic(t *testing.T) {
	c := New()
	a := c.NowMicros()
	c.Sleep(time.Millisecond)
	b := c.NowMicros()
	assert.GreaterOrEqual(t, b, a+1000)
}

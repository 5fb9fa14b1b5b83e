package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockUpdateBeforeStartIsNoop(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Delta())
	assert.Zero(t, c.Elapsed())
}

func TestClockDeltaTracksFrameStep(t *testing.T) {
	c := NewClock()
	c.Start()
	assert.Zero(t, c.Delta())

	time.Sleep(5 * time.Millisecond)
	c.Update()
	first := c.Delta()
	assert.Greater(t, first, 0.0)

	time.Sleep(5 * time.Millisecond)
	c.Update()
	assert.Greater(t, c.Delta(), 0.0)
	assert.GreaterOrEqual(t, c.Elapsed(), c.Delta())
}

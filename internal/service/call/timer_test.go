package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerLifecycle(t *testing.T) {
	timer := NewTimer()

	assert.False(t, timer.Running())
	assert.Zero(t, timer.Elapsed())

	timer.Start(time.Now().Add(-3 * time.Second))
	assert.True(t, timer.Running())
	assert.GreaterOrEqual(t, timer.Elapsed(), 3*time.Second)

	timer.Stop()
	assert.False(t, timer.Running())
	assert.Zero(t, timer.Elapsed())
}

func TestTimerStopIdempotent(t *testing.T) {
	timer := NewTimer()
	timer.Start(time.Now())

	timer.Stop()
	timer.Stop()
	assert.False(t, timer.Running())
	assert.Zero(t, timer.Elapsed())
}

func TestTimerRestart(t *testing.T) {
	timer := NewTimer()
	timer.Start(time.Now().Add(-time.Minute))
	timer.Stop()

	timer.Start(time.Now())
	assert.True(t, timer.Running())
	assert.Less(t, timer.Elapsed(), time.Minute)
}

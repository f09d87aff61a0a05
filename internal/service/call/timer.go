package call

import (
	"sync"
	"time"
)

// Timer is the wall-clock call counter shown to the UI. It runs beside
// the pipeline and shares no state with it; clearing it never affects
// the state machine.
type Timer struct {
	mu        sync.Mutex
	startedAt time.Time
	running   bool
}

// NewTimer returns a stopped timer.
func NewTimer() *Timer { return &Timer{} }

// Start begins counting from the given instant.
func (t *Timer) Start(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = now
	t.running = true
}

// Stop clears the counter. Idempotent.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.startedAt = time.Time{}
}

// Elapsed returns the duration since Start, or zero when stopped.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return time.Since(t.startedAt)
}

// Running reports whether the timer is counting.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

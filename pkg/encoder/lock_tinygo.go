//go:build tinygo

package encoder

import "runtime/interrupt"

// edgeLock is a critical section with interrupts disabled.  OnPulseEdge runs
// inside the pin interrupt, where a mutex would try to park the task.
type edgeLock struct {
	state interrupt.State
}

func (l *edgeLock) Lock() {
	l.state = interrupt.Disable()
}

func (l *edgeLock) Unlock() {
	interrupt.Restore(l.state)
}

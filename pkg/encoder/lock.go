//go:build !tinygo

package encoder

import "sync"

// edgeLock guards the tracker between the edge watcher goroutine and the
// control loop.
type edgeLock struct {
	mu sync.Mutex
}

func (l *edgeLock) Lock() {
	l.mu.Lock()
}

func (l *edgeLock) Unlock() {
	l.mu.Unlock()
}

package service

import (
	"sync"
	"time"
)

// userLocks serializes sync runs per user inside the process. The
// store-side active-run check guards across processes; this lock
// closes the race between two requests in the same one.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]chan struct{})}
}

// acquire takes the user's lock, waiting at most wait. Returns false
// when the lock is still held after the wait.
func (l *userLocks) acquire(userID string, wait time.Duration) bool {
	l.mu.Lock()
	ch, ok := l.locks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[userID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (l *userLocks) release(userID string) {
	l.mu.Lock()
	ch := l.locks[userID]
	l.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

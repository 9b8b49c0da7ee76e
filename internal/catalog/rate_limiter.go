package catalog

import (
	"sync"
	"time"
)

// rpsLimiter spaces requests at a fixed interval. Slots are handed
// out under the lock; the sleep happens outside it so waiters queue
// without serializing on the mutex.
type rpsLimiter struct {
	mu       sync.Mutex
	nextSlot time.Time
	interval time.Duration
}

func newRPSLimiter(requestsPerSecond int) *rpsLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &rpsLimiter{interval: time.Second / time.Duration(requestsPerSecond)}
}

func (l *rpsLimiter) wait() {
	l.mu.Lock()
	now := time.Now()
	slot := now
	if l.nextSlot.After(now) {
		slot = l.nextSlot
	}
	l.nextSlot = slot.Add(l.interval)
	l.mu.Unlock()

	if d := time.Until(slot); d > 0 {
		time.Sleep(d)
	}
}

package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window request limiter keyed by client (IP address for
// the geocoding routes).
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	maxReqs int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewLimiter allows maxRequests per window per key and starts a janitor that
// forgets idle keys
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	l := &Limiter{
		windows: make(map[string][]time.Time),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.janitor(5 * time.Minute)
	return l
}

// Allow records a request for key. When the key is over its limit it returns
// false and how long until the oldest request leaves the window.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l.maxReqs <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	reqs := prune(l.windows[key], now.Add(-l.window))
	if len(reqs) >= l.maxReqs {
		l.windows[key] = reqs
		return false, reqs[0].Add(l.window).Sub(now)
	}
	l.windows[key] = append(reqs, now)
	return true, 0
}

// prune drops timestamps at or before cutoff; reqs is ordered oldest first
func prune(reqs []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(reqs) && !reqs[i].After(cutoff) {
		i++
	}
	return reqs[i:]
}

func (l *Limiter) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for key, reqs := range l.windows {
		if len(prune(reqs, cutoff)) == 0 {
			delete(l.windows, key)
		}
	}
}

// Stop ends the janitor goroutine
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

package httpapi

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window request counter per remote origin. A window
// starts on an origin's first request and resets once it has fully elapsed;
// requests beyond limit within the window are rejected.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	origins map[string]*originWindow
	now     func() time.Time
}

type originWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		origins: make(map[string]*originWindow),
		now:     time.Now,
	}
}

func (l *rateLimiter) allow(origin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.origins[origin]
	if !ok || now.Sub(w.start) >= l.window {
		l.origins[origin] = &originWindow{start: now, count: 1}
		l.sweep(now)
		return true
	}

	w.count++
	return w.count <= l.limit
}

// sweep drops expired windows so the map stays bounded by the set of origins
// seen within the last window. Called with the lock held.
func (l *rateLimiter) sweep(now time.Time) {
	for origin, w := range l.origins {
		if now.Sub(w.start) >= l.window {
			delete(l.origins, origin)
		}
	}
}

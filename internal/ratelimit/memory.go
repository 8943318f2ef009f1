package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps process-local counters. Each key has its own lock, so
// distinct clients never contend with each other.
type MemoryLimiter struct {
	cfg     Config
	now     func() time.Time
	windows sync.Map // string -> *window
}

type window struct {
	mu       sync.Mutex
	start    time.Time
	attempts int
	// removed is set by Sweep once the entry has left the map.
	removed bool
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config, opts ...MemoryOption) *MemoryLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	l := &MemoryLimiter{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one attempt for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	for {
		w := l.entry(key)

		w.mu.Lock()
		if w.removed {
			// Lost a race with Sweep; the map now holds (or will hold) a fresh entry.
			w.mu.Unlock()
			continue
		}

		now := l.now()
		if w.start.IsZero() || now.Sub(w.start) > l.cfg.Window {
			w.start = now
			w.attempts = 0
		}
		w.attempts++

		res := Result{
			Allowed:   w.attempts <= l.cfg.MaxAttempts,
			Remaining: remaining(l.cfg.MaxAttempts, w.attempts),
			ResetAt:   w.start.Add(l.cfg.Window),
		}
		w.mu.Unlock()
		return res, nil
	}
}

func (l *MemoryLimiter) entry(key string) *window {
	if v, ok := l.windows.Load(key); ok {
		return v.(*window)
	}
	v, _ := l.windows.LoadOrStore(key, &window{})
	return v.(*window)
}

// Sweep drops windows that ended before now and returns how many were removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	removed := 0
	l.windows.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		if !w.start.IsZero() && now.Sub(w.start) > l.cfg.Window {
			w.removed = true
			l.windows.Delete(key)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	return removed
}

// RunJanitor sweeps expired windows every interval until ctx is done.
func (l *MemoryLimiter) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(l.now())
		}
	}
}

package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	blockedUntil time.Time
	updatedAt    time.Time
}

// Memory is an in-process limiter with a sliding failure window and lockout.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*entry
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	lastSweep time.Time
}

// NewMemory constructs an in-memory limiter. A failure older than window
// restarts the count; maxFails failures inside the window block for blockFor.
// The count is not reset by a block, so a failure right after the block
// expires, still inside the window, blocks again.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		entries:  map[string]*entry{},
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

// Allow reports whether verification is allowed for login and a retry-after duration.
func (l *Memory) Allow(_ context.Context, login string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)
	e, ok := l.entries[login]
	if !ok {
		return true, 0, nil
	}
	if e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for login.
func (l *Memory) Success(_ context.Context, login string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, login)
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (l *Memory) Failure(_ context.Context, login string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)
	e, ok := l.entries[login]
	if !ok {
		e = &entry{}
		l.entries[login] = e
	}
	if now.Sub(e.updatedAt) > l.window {
		e.fails = 0
	}
	e.fails++
	e.updatedAt = now

	if e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor, nil
	}
	return false, 0, nil
}

// maybeSweep drops entries whose window and block have both lapsed.
// It walks the map at most once per window. Callers hold l.mu.
func (l *Memory) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for login, e := range l.entries {
		if now.Sub(e.updatedAt) > l.window && !e.blockedUntil.After(now) {
			delete(l.entries, login)
		}
	}
}

// Len returns the number of tracked logins.
func (l *Memory) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Forget drops any state for login (e.g., after the record is deleted or renamed).
func (l *Memory) Forget(login string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, login)
}

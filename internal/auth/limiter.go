package auth

import (
	"sync"
	"time"
)

const (
	maxFailedAttempts = 5
	attemptWindow     = 15 * time.Minute
)

// attemptLimiter counts failed logins per email within a sliding window.
type attemptLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAttemptLimiter() *attemptLimiter {
	return &attemptLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

// blocked reports whether the given email has exhausted its attempts.
func (l *attemptLimiter) blocked(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(email)) >= maxFailedAttempts
}

// registerFailure records a failed attempt for the given email.
func (l *attemptLimiter) registerFailure(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[email] = append(l.prune(email), l.now())
}

// reset clears the failures of the given email after a successful login.
func (l *attemptLimiter) reset(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, email)
}

// prune drops failures outside the window. Callers must hold the lock.
func (l *attemptLimiter) prune(email string) []time.Time {
	cutoff := l.now().Add(-attemptWindow)
	recent := make([]time.Time, 0, len(l.failures[email]))
	for _, at := range l.failures[email] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) == 0 {
		delete(l.failures, email)
		return nil
	}
	l.failures[email] = recent
	return recent
}

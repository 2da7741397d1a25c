package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/tilegen/internal/config"
)

// FailureLimiter locks out client IPs that keep sending requests the
// service rejects: malformed JSON, unknown rulesets, oversized maps.
// Each lockout doubles the previous one up to a cap.
type FailureLimiter struct {
	mu          sync.Mutex
	clients     map[string]*failureInfo
	maxFailures int
	lockout     time.Duration
	maxLockout  time.Duration
	now         func() time.Time

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type failureInfo struct {
	failures    int
	lockouts    int
	lockedUntil time.Time
	lastFailure time.Time
}

// NewFailureLimiter creates a limiter and starts its cleanup goroutine.
// Zero settings fall back to 10 failures, 30s and 300s.
func NewFailureLimiter(cfg config.RateLimitConfig) *FailureLimiter {
	fl := &FailureLimiter{
		clients:         make(map[string]*failureInfo),
		maxFailures:     cfg.MaxFailures,
		lockout:         time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:      time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		stop:            make(chan struct{}),
	}
	if fl.maxFailures <= 0 {
		fl.maxFailures = 10
	}
	if fl.lockout <= 0 {
		fl.lockout = 30 * time.Second
	}
	if fl.maxLockout <= 0 {
		fl.maxLockout = 300 * time.Second
	}
	if fl.maxLockout < fl.lockout {
		fl.maxLockout = fl.lockout
	}

	go fl.cleanupLoop()
	return fl
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (fl *FailureLimiter) Stop() {
	fl.stopOnce.Do(func() { close(fl.stop) })
}

// IsLocked reports whether ip is locked out and for how much longer.
func (fl *FailureLimiter) IsLocked(ip string) (bool, time.Duration) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	info, ok := fl.clients[ip]
	if !ok {
		return false, 0
	}
	if now := fl.now(); now.Before(info.lockedUntil) {
		return true, info.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a rejected request. It reports whether ip is now
// locked out and for how long.
func (fl *FailureLimiter) RecordFailure(ip string) (bool, time.Duration) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := fl.now()
	info, ok := fl.clients[ip]
	if !ok {
		info = &failureInfo{}
		fl.clients[ip] = info
	}
	info.lastFailure = now

	if now.Before(info.lockedUntil) {
		return true, info.lockedUntil.Sub(now)
	}

	info.failures++
	if info.failures < fl.maxFailures {
		return false, 0
	}

	info.lockouts++
	d := fl.lockout
	for i := 1; i < info.lockouts && d < fl.maxLockout; i++ {
		d *= 2
	}
	if d > fl.maxLockout {
		d = fl.maxLockout
	}
	info.lockedUntil = now.Add(d)
	info.failures = 0
	return true, d
}

// RecordSuccess clears the failure count for ip. Earlier lockouts still
// count towards the next lockout's length until the entry expires.
func (fl *FailureLimiter) RecordSuccess(ip string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if info, ok := fl.clients[ip]; ok {
		info.failures = 0
	}
}

// Failures returns the failures recorded for ip since its last lockout.
func (fl *FailureLimiter) Failures(ip string) int {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if info, ok := fl.clients[ip]; ok {
		return info.failures
	}
	return 0
}

func (fl *FailureLimiter) cleanupLoop() {
	ticker := time.NewTicker(fl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fl.stop:
			return
		case <-ticker.C:
			fl.cleanup()
		}
	}
}

// cleanup drops clients that are unlocked and quiet for 10 minutes
func (fl *FailureLimiter) cleanup() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	cutoff := fl.now().Add(-10 * time.Minute)
	for ip, info := range fl.clients {
		if info.lockedUntil.Before(cutoff) && info.lastFailure.Before(cutoff) {
			delete(fl.clients, ip)
		}
	}
}

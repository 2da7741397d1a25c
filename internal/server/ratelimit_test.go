package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/tilegen/internal/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestFailureLimiter(t *testing.T, cfg config.RateLimitConfig) (*FailureLimiter, *fakeClock) {
	t.Helper()
	fl := NewFailureLimiter(cfg)
	t.Cleanup(fl.Stop)

	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	fl.now = clock.now
	return fl, clock
}

func TestFailureLimiter_LocksAfterMaxFailures(t *testing.T) {
	fl, _ := newTestFailureLimiter(t, config.RateLimitConfig{MaxFailures: 3, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"

	locked, _ := fl.RecordFailure(ip)
	assert.False(t, locked)
	locked, _ = fl.RecordFailure(ip)
	assert.False(t, locked)
	assert.Equal(t, 2, fl.Failures(ip))

	locked, d := fl.RecordFailure(ip)
	require.True(t, locked)
	assert.Equal(t, time.Second, d)

	isLocked, remaining := fl.IsLocked(ip)
	assert.True(t, isLocked)
	assert.Equal(t, time.Second, remaining)
	assert.Zero(t, fl.Failures(ip), "failures reset after a lockout")
}

func TestFailureLimiter_LockoutExpires(t *testing.T) {
	fl, clock := newTestFailureLimiter(t, config.RateLimitConfig{MaxFailures: 1, LockoutSeconds: 5, MaxLockoutSeconds: 60})
	ip := "10.0.0.1"

	fl.RecordFailure(ip)
	clock.advance(4 * time.Second)
	locked, remaining := fl.IsLocked(ip)
	assert.True(t, locked)
	assert.Equal(t, time.Second, remaining)

	// A failure while locked does not count or extend the lockout
	locked, _ = fl.RecordFailure(ip)
	assert.True(t, locked)
	assert.Zero(t, fl.Failures(ip))

	clock.advance(time.Second)
	locked, _ = fl.IsLocked(ip)
	assert.False(t, locked)
}

func TestFailureLimiter_SuccessClears(t *testing.T) {
	fl, _ := newTestFailureLimiter(t, config.RateLimitConfig{MaxFailures: 3, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"

	fl.RecordFailure(ip)
	fl.RecordFailure(ip)
	fl.RecordSuccess(ip)

	locked, _ := fl.RecordFailure(ip)
	assert.False(t, locked)
	locked, _ = fl.RecordFailure(ip)
	assert.False(t, locked)
}

func TestFailureLimiter_ExponentialBackoff(t *testing.T) {
	fl, clock := newTestFailureLimiter(t, config.RateLimitConfig{MaxFailures: 1, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"

	for _, want := range []time.Duration{1, 2, 4, 8, 10, 10} {
		locked, d := fl.RecordFailure(ip)
		require.True(t, locked)
		assert.Equal(t, want*time.Second, d)
		clock.advance(d)
	}
}

func TestFailureLimiter_MultipleIPs(t *testing.T) {
	fl, _ := newTestFailureLimiter(t, config.RateLimitConfig{MaxFailures: 2, LockoutSeconds: 1, MaxLockoutSeconds: 10})

	fl.RecordFailure("192.168.1.1")
	fl.RecordFailure("192.168.1.1")
	fl.RecordFailure("192.168.1.2")

	locked, _ := fl.IsLocked("192.168.1.1")
	assert.True(t, locked)
	locked, _ = fl.IsLocked("192.168.1.2")
	assert.False(t, locked)
	assert.Equal(t, 1, fl.Failures("192.168.1.2"))
}

func TestFailureLimiter_Defaults(t *testing.T) {
	fl, _ := newTestFailureLimiter(t, config.RateLimitConfig{})

	assert.Equal(t, 10, fl.maxFailures)
	assert.Equal(t, 30*time.Second, fl.lockout)
	assert.Equal(t, 300*time.Second, fl.maxLockout)
}

func TestFailureLimiter_Cleanup(t *testing.T) {
	fl, clock := newTestFailureLimiter(t, config.RateLimitConfig{MaxFailures: 1, LockoutSeconds: 1, MaxLockoutSeconds: 10})

	fl.RecordFailure("192.168.1.1")
	clock.advance(5 * time.Minute)
	fl.RecordFailure("192.168.1.2")

	clock.advance(6 * time.Minute)
	fl.cleanup()

	fl.mu.Lock()
	_, stale := fl.clients["192.168.1.1"]
	_, recent := fl.clients["192.168.1.2"]
	fl.mu.Unlock()

	assert.False(t, stale, "quiet client should be dropped")
	assert.True(t, recent, "recent client should be kept")
}

func TestFailureLimiter_StopTwice(t *testing.T) {
	fl := NewFailureLimiter(config.RateLimitConfig{})
	fl.Stop()
	assert.NotPanics(t, fl.Stop)
}

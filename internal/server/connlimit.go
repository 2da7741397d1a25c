package server

import (
	"net"
	"sync"

	"github.com/lawnchairsociety/tilegen/internal/config"
)

// ConnLimiter caps concurrent websocket sessions per client IP and overall.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter creates a limiter. A zero limit disables that check.
func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		perIP:    make(map[string]int),
		maxPerIP: cfg.MaxPerIP,
		maxTotal: cfg.MaxTotal,
	}
}

// TryAcquire takes a session slot for ip, or reports false if either
// limit is already reached.
func (c *ConnLimiter) TryAcquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.total >= c.maxTotal {
		return false
	}
	if c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP {
		return false
	}

	c.perIP[ip]++
	c.total++
	return true
}

// Release returns a slot taken by TryAcquire.
func (c *ConnLimiter) Release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := c.perIP[ip]; n > 1 {
		c.perIP[ip] = n - 1
	} else if n == 1 {
		delete(c.perIP, ip)
	}
	if c.total > 0 {
		c.total--
	}
}

// Stats returns the number of open sessions and of distinct IPs holding them.
func (c *ConnLimiter) Stats() (sessions int, ips int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, len(c.perIP)
}

// Count returns the open sessions held by ip.
func (c *ConnLimiter) Count(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perIP[ip]
}

// extractIP strips the port from a host:port address.
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Package resguard implements the accept-side resource guard: a
// capacity-bounded connection semaphore paired with a token-bucket rate
// limiter, so a burst of incoming connections can't outrun the server's
// configured capacity.
package resguard

import (
	"time"

	"golang.org/x/time/rate"
)

// Guard gates new connections before a handler goroutine is spawned for
// them.
type Guard struct {
	sem          chan struct{}
	limiter      *rate.Limiter
	graceTimeout time.Duration
}

// New constructs a Guard allowing at most maxConnections concurrently
// active connections, admitted at up to ratePerSec (with the given burst)
// new accepts per second.
func New(maxConnections int, ratePerSec float64, burst int, graceTimeout time.Duration) *Guard {
	return &Guard{
		sem:          make(chan struct{}, maxConnections),
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), burst),
		graceTimeout: graceTimeout,
	}
}

// Acquire attempts to reserve one connection slot. It takes a rate-limiter
// token without waiting, failing at once if none is available, and then
// waits up to the configured grace timeout for a semaphore slot. It reports
// whether the slot was obtained; a false result means the connection should
// be closed immediately without being handled.
func (g *Guard) Acquire() bool {
	if !g.limiter.AllowN(time.Now(), 1) {
		return false
	}

	select {
	case g.sem <- struct{}{}:
		return true
	case <-time.After(g.graceTimeout):
		return false
	}
}

// Release returns a previously acquired slot to the pool.
func (g *Guard) Release() {
	select {
	case <-g.sem:
	default:
	}
}

// InUse reports how many slots are currently held.
func (g *Guard) InUse() int { return len(g.sem) }

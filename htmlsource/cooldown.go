package htmlsource

import (
	"sync"
	"time"
)

// Cooldown remembers sites that answered with a bot wall and keeps them
// benched until the cool-down period has passed. A site that keeps
// blocking is not hammered on every query.
type Cooldown struct {
	store  sync.Map // site name (string) -> time.Time
	period time.Duration
	now    func() time.Time
}

// NewCooldown creates a Cooldown benching a blocking site for period.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period, now: time.Now}
}

// Trip benches site from now on.
func (c *Cooldown) Trip(site string) {
	c.store.Store(site, c.now().Add(c.period))
}

// Until returns when site becomes available again, and false if it is
// available now. Expired entries are dropped on read.
func (c *Cooldown) Until(site string) (time.Time, bool) {
	val, ok := c.store.Load(site)
	if !ok {
		return time.Time{}, false
	}
	until := val.(time.Time)
	if !c.now().Before(until) {
		c.store.CompareAndDelete(site, val)
		return time.Time{}, false
	}
	return until, true
}

// Reset makes site available immediately.
func (c *Cooldown) Reset(site string) {
	c.store.Delete(site)
}

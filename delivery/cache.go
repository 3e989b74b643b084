package delivery

import "time"

// readinessCache memoizes the last probe outcome. Only positive results are
// served from the cache; a negative answer always gets re-probed on the next
// attempt. The epoch advances on every invalidation so a probe that started
// earlier cannot write its result back afterwards.
type readinessCache struct {
	ttl       time.Duration
	valid     bool
	ready     bool
	checkedAt time.Time
	epoch     uint64
}

func (c *readinessCache) lookup(now time.Time) bool {
	if !c.valid || !c.ready {
		return false
	}
	if c.ttl > 0 && now.Sub(c.checkedAt) > c.ttl {
		c.valid = false
		return false
	}
	return true
}

// store records a result observed under epoch. It reports false when the
// cache was invalidated in the meantime and the result was discarded.
func (c *readinessCache) store(epoch uint64, ready bool, now time.Time) bool {
	if epoch != c.epoch {
		return false
	}
	c.valid = true
	c.ready = ready
	c.checkedAt = now
	return true
}

func (c *readinessCache) invalidate() {
	c.valid = false
	c.ready = false
	c.epoch++
}

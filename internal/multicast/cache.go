package multicast

import (
	"sync"
	"time"

	"homehub/internal/status"
)

type entry struct {
	fields     status.Fields
	receivedAt time.Time
}

// Cache keeps the latest broadcast per module. One lock covers all entries.
type Cache struct {
	mu      sync.Mutex
	entries map[status.Module]entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[status.Module]entry, len(status.Modules))}
}

// Put replaces the entry for m.
func (c *Cache) Put(m status.Module, f status.Fields, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m] = entry{fields: f, receivedAt: at}
}

// Fresh returns the payload for m if it was received less than ttl before now.
func (c *Cache) Fresh(m status.Module, now time.Time, ttl time.Duration) (status.Fields, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[m]
	if !ok || now.Sub(e.receivedAt) >= ttl {
		return nil, time.Time{}, false
	}
	return e.fields, e.receivedAt, true
}

// Unified builds a status from the fresh entries of the modules enabled
// reports true for. UpdatedAtMs is the newest packet time used, or now when
// nothing is fresh.
func (c *Cache) Unified(now time.Time, ttl time.Duration, enabled func(status.Module) bool) status.Unified {
	u := status.Unified{FromMulticast: true}
	var newest time.Time

	for _, m := range status.Modules {
		if !enabled(m) {
			continue
		}
		f, at, ok := c.Fresh(m, now, ttl)
		if !ok {
			continue
		}
		switch m {
		case status.ModuleInverter:
			u.Inverter = status.ParseInverter(f)
		case status.ModuleLoadController:
			u.LoadController = status.ParseLoadController(f)
		case status.ModuleGarage:
			u.Garage = status.ParseGarage(f)
		}
		if at.After(newest) {
			newest = at
		}
	}

	if newest.IsZero() {
		newest = now
	}
	u.UpdatedAtMs = newest.UnixMilli()
	return u
}

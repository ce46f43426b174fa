// Package cache is a read-through cache for derived plan views. Entries are
// keyed by plan id and dropped on every write to that plan; the stores stay
// the source of truth.
package cache

import (
	"encoding/json"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const megabyte = 1024 * 1024

const (
	scheduleKeyPrefix = "schedule::"
	progressKeyPrefix = "progress::"
)

// PlanCache stores JSON-encoded views per plan.
type PlanCache interface {
	GetSchedule(planID string, v interface{}) bool
	SetSchedule(planID string, v interface{})
	GetProgress(planID string, v interface{}) bool
	SetProgress(planID string, v interface{})
	InvalidatePlan(planID string)
}

type freeCache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// NewPlanCache returns a freecache-backed PlanCache. sizeMB <= 0 disables caching.
func NewPlanCache(sizeMB int, ttl time.Duration) PlanCache {
	if sizeMB <= 0 {
		return Noop{}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &freeCache{
		cache: freecache.NewCache(sizeMB * megabyte),
		ttl:   ttl,
	}
}

func (c *freeCache) GetSchedule(planID string, v interface{}) bool {
	return c.get(scheduleKeyPrefix+planID, v)
}

func (c *freeCache) SetSchedule(planID string, v interface{}) {
	c.set(scheduleKeyPrefix+planID, v)
}

func (c *freeCache) GetProgress(planID string, v interface{}) bool {
	return c.get(progressKeyPrefix+planID, v)
}

func (c *freeCache) SetProgress(planID string, v interface{}) {
	c.set(progressKeyPrefix+planID, v)
}

func (c *freeCache) InvalidatePlan(planID string) {
	c.cache.Del([]byte(scheduleKeyPrefix + planID))
	c.cache.Del([]byte(progressKeyPrefix + planID))
}

func (c *freeCache) get(key string, v interface{}) bool {
	data, err := c.cache.Get([]byte(key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Errorf("cache: failed to unmarshal %s: %s", key, err)
		c.cache.Del([]byte(key))
		return false
	}
	log.Tracef("cache: hit %s", key)
	return true
}

func (c *freeCache) set(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("cache: failed to marshal %s: %s", key, err)
		return
	}
	if err := c.cache.Set([]byte(key), data, int(c.ttl/time.Second)); err != nil {
		log.Debugf("cache: failed to set %s: %s", key, err)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) GetSchedule(string, interface{}) bool { return false }
func (Noop) SetSchedule(string, interface{})      {}
func (Noop) GetProgress(string, interface{}) bool { return false }
func (Noop) SetProgress(string, interface{})      {}
func (Noop) InvalidatePlan(string)                {}

package cache

import (
	"sync"
	"time"
)

// TTLCache is an in-memory cache backed by sync.Map. Entries expire after
// the ttl given to Set. A background cleanup goroutine runs when
// NewTTLCache is given a positive cleanupInterval.
type TTLCache[V any] struct {
	items sync.Map
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	now   func() time.Time
}

type entry[V any] struct {
	value      V
	expiration int64 // unix nano; 0 means no expiration
}

func NewTTLCache[V any](cleanupInterval time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		stop: make(chan struct{}),
		now:  time.Now,
	}
	if cleanupInterval > 0 {
		c.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer c.wg.Done()
			for {
				select {
				case <-ticker.C:
					c.cleanup()
				case <-c.stop:
					return
				}
			}
		}()
	}
	return c
}

func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = c.now().Add(ttl).UnixNano()
	}
	c.items.Store(key, &entry[V]{value: value, expiration: exp})
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	v, ok := c.items.Load(key)
	if !ok {
		return zero, false
	}
	e := v.(*entry[V])
	if e.expired(c.now().UnixNano()) {
		c.items.CompareAndDelete(key, v)
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) Delete(key string) {
	c.items.Delete(key)
}

func (c *TTLCache[V]) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
}

func (e *entry[V]) expired(now int64) bool {
	return e.expiration != 0 && now > e.expiration
}

func (c *TTLCache[V]) cleanup() {
	now := c.now().UnixNano()
	c.items.Range(func(k, v any) bool {
		if v.(*entry[V]).expired(now) {
			c.items.CompareAndDelete(k, v)
		}
		return true
	})
}

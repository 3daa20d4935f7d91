package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Local is an in-process availability cache on go-cache.
type Local struct {
	items *gocache.Cache
}

// NewLocal creates a cache whose entries expire after ttl.
func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Local{items: gocache.New(ttl, 2*ttl)}
}

func (c *Local) Get(_ context.Context, key Key) ([]string, bool) {
	v, ok := c.items.Get(key.String())
	if !ok {
		return nil, false
	}
	blocks, ok := v.([]string)
	if !ok {
		return nil, false
	}
	return cloneBlocks(blocks), true
}

func (c *Local) Set(_ context.Context, key Key, blocks []string) {
	c.items.SetDefault(key.String(), cloneBlocks(blocks))
}

func (c *Local) InvalidateDate(_ context.Context, date string) {
	prefix := date + "|"
	for k := range c.items.Items() {
		if strings.HasPrefix(k, prefix) {
			c.items.Delete(k)
		}
	}
}

// Len reports the number of unexpired entries.
func (c *Local) Len() int {
	return c.items.ItemCount()
}

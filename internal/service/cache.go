package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	kb      *KnowledgeBase
	expires time.Time
}

// kbCache keeps built knowledge bases for ttl and runs at most one build per
// key at a time. Failed builds are not stored. With a zero ttl nothing is
// stored, but concurrent callers still share one build.
type kbCache struct {
	ttl          time.Duration
	buildTimeout time.Duration
	now          func() time.Time

	mu         sync.Mutex
	entries    map[string]cacheEntry
	generation uint64
	group      singleflight.Group
}

func newKBCache(ttl, buildTimeout time.Duration) *kbCache {
	return &kbCache{
		ttl:          ttl,
		buildTimeout: buildTimeout,
		now:          time.Now,
		entries:      make(map[string]cacheEntry),
	}
}

func (c *kbCache) get(ctx context.Context, key string, build func(context.Context) (*KnowledgeBase, error)) (*KnowledgeBase, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.kb, nil
	}
	gen := c.generation
	c.mu.Unlock()

	// The build is shared, so it must outlive any single caller.
	ch := c.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
		defer cancel()
		kb, err := build(bctx)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, kb)
		return kb, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KnowledgeBase), nil
	}
}

func (c *kbCache) store(key string, gen uint64, kb *KnowledgeBase) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// an invalidation happened while building
	if gen != c.generation {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{kb: kb, expires: now.Add(c.ttl)}
}

func (c *kbCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	clear(c.entries)
}

package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lessonforge/lessonforge/pkg/models"
)

// RoleSource loads role documents. *store.Store satisfies it.
type RoleSource interface {
	GetRoleByInternalName(ctx context.Context, name string) (*models.Role, error)
}

type cacheConfig struct {
	size int
	ttl  time.Duration
}

func defaultCacheConfig() cacheConfig {
	// A deployment has a handful of roles; the size is generous headroom.
	return cacheConfig{size: 64, ttl: 5 * time.Minute}
}

// roleCache is a read-through TTL cache over the role source.
type roleCache struct {
	lru *expirable.LRU[string, *models.Role]
}

func newRoleCache(cfg cacheConfig) *roleCache {
	return &roleCache{lru: expirable.NewLRU[string, *models.Role](cfg.size, nil, cfg.ttl)}
}

// Role returns the role with the given internal name, loading it through the
// compiler's source on a miss.
func (c *Compiler) Role(ctx context.Context, internalName string) (*models.Role, error) {
	if role, ok := c.cache.lru.Get(internalName); ok {
		return role, nil
	}
	role, err := c.roles.GetRoleByInternalName(ctx, internalName)
	if err != nil {
		return nil, fmt.Errorf("load role %q: %w", internalName, err)
	}
	c.cache.lru.Add(internalName, role)
	return role, nil
}

// Invalidate drops a role from the cache. Role mutation paths call this
// right after committing a change.
func (c *Compiler) Invalidate(internalName string) {
	c.cache.lru.Remove(internalName)
}

// InvalidateAll empties the cache.
func (c *Compiler) InvalidateAll() {
	c.cache.lru.Purge()
}

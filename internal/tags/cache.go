package tags

import (
	"maps"
	"slices"
	"sync/atomic"

	"github.com/jonathan/addrlens/internal/types"
)

// Cache holds the resolved tags the recognition engine works from. The contents are
// an immutable snapshot swapped wholesale by Replace, never patched in place.
type Cache struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	resolved map[types.Address]types.ResolvedTag
	known    []types.Address
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	c.snap.Store(&snapshot{resolved: map[types.Address]types.ResolvedTag{}})
	return c
}

// Replace installs a new snapshot built from resolved. The map is copied.
func (c *Cache) Replace(resolved map[types.Address]types.ResolvedTag) {
	next := &snapshot{resolved: maps.Clone(resolved)}
	if next.resolved == nil {
		next.resolved = map[types.Address]types.ResolvedTag{}
	}
	next.known = slices.Sorted(maps.Keys(next.resolved))
	c.snap.Store(next)
}

// Lookup returns the resolved tag for addr.
func (c *Cache) Lookup(addr types.Address) (types.ResolvedTag, bool) {
	tag, ok := c.snap.Load().resolved[addr]
	return tag, ok
}

// Known returns the tagged addresses in lexicographic order. Callers must not modify it.
func (c *Cache) Known() []types.Address {
	return c.snap.Load().known
}

// Len returns the number of tagged addresses.
func (c *Cache) Len() int {
	return len(c.snap.Load().resolved)
}

// All returns a copy of the resolved map.
func (c *Cache) All() map[types.Address]types.ResolvedTag {
	return maps.Clone(c.snap.Load().resolved)
}

package beta

import (
	"github.com/pkg/errors"
	"github.com/solverkit/betareduce/pkg/expr"
)

// cacheKey canonicalizes a (lambda, args) pair into a cheap comparable map
// key. Hash-consing guarantees node identity is structural identity, so two
// ids are all the key needs.
type cacheKey struct {
	lambda uint32
	args   uint32
}

func keyFor(lambda, args expr.Ref) cacheKey {
	return cacheKey{lambda: lambda.Identity(), args: args.Identity()}
}

// cacheEntry keeps a reference of its own on both halves of the key as
// well as on the result, so none of the three can be evicted from the
// graph while the entry lives.
type cacheEntry struct {
	lambda expr.Ref
	args   expr.Ref
	result expr.Ref
}

// Cache is the cross-call result cache: memoization of (lambda, args) ->
// result, populated only by full-mode reduction and only when the lambda is
// top-level non-parameterized. Both halves of the key must be closed (no
// free parameters) for an entry to be meaningful outside the binding state
// it was created under.
//
// A Cache belongs to the enclosing solver, not to any one reduction call;
// it outlives individual Full/Bounded/Chains invocations and is passed in
// by the caller rather than created per call.
type Cache struct {
	g       *expr.Graph
	entries map[cacheKey]cacheEntry
}

// NewCache creates an empty cross-call cache over g.
func NewCache(g *expr.Graph) *Cache {
	return &Cache{g: g, entries: make(map[cacheKey]cacheEntry)}
}

// Lookup returns the previously reduced result for (lambda, args), or
// (zero, false) if absent. The returned Ref is owned by the cache; callers
// must Copy it before storing elsewhere.
func (c *Cache) Lookup(lambda, args expr.Ref) (expr.Ref, bool) {
	e, ok := c.entries[keyFor(lambda, args)]
	return e.result, ok
}

// Store inserts result under (lambda, args) if absent. If an entry is
// already present, the stored value must be identical to result —
// hash-consing makes this a well-defined identity check — and a mismatch
// panics rather than silently keeping the old value.
func (c *Cache) Store(lambda, args, result expr.Ref) {
	key := keyFor(lambda, args)
	if existing, ok := c.entries[key]; ok {
		if existing.result != result {
			panic(errors.Errorf("beta: cross-call cache inconsistency for %s: had %s, got %s",
				c.g.String(lambda), c.g.String(existing.result), c.g.String(result)))
		}
		return
	}
	c.entries[key] = cacheEntry{
		lambda: c.g.Copy(lambda),
		args:   c.g.Copy(args),
		result: c.g.Copy(result),
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int { return len(c.entries) }

// Release drops every reference this cache owns. Callers that want to
// reclaim a solver's cache at shutdown call this once; nothing in the beta
// engine itself calls it (the cache is meant to outlive calls).
func (c *Cache) Release() {
	for k, e := range c.entries {
		c.g.Release(e.lambda)
		c.g.Release(e.args)
		c.g.Release(e.result)
		delete(c.entries, k)
	}
}

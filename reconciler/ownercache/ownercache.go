// Package ownercache fronts an owner lookup with a TTL cache.
//
// Note managers change rarely but every transfer resolves two or more of
// them, so the scraper wraps its store with this cache.
package ownercache

import (
	"context"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/screwyprof/pledger/reconciler"
)

// DefaultTTL is how long a resolved owner is reused
const DefaultTTL = 5 * time.Minute

// Owners caches successful lookups of the wrapped reconciler.Owners.
// Failures are never cached.
type Owners struct {
	next  reconciler.Owners
	cache *cache.Cache
	ttl   time.Duration
}

// New wraps next. A non-positive ttl falls back to DefaultTTL.
func New(next reconciler.Owners, ttl time.Duration) *Owners {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Owners{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// GetOwner returns the cached owner or resolves and caches it
func (o *Owners) GetOwner(ctx context.Context, id string) (reconciler.Owner, error) {
	if obj, found := o.cache.Get(id); found {
		return obj.(reconciler.Owner), nil
	}

	owner, err := o.next.GetOwner(ctx, id)
	if err != nil {
		return reconciler.Owner{}, err
	}

	o.cache.Set(id, owner, o.ttl)
	return owner, nil
}

// Len returns the number of cached owners, including expired ones not yet
// swept
func (o *Owners) Len() int {
	return o.cache.ItemCount()
}

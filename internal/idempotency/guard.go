// Package idempotency deduplicates order placements that carry a
// client supplied key.
package idempotency

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Guard remembers which order a (user, key) pair produced. Entries expire
// after the configured TTL and the cache holds at most Size entries. The
// memory is local to one process.
type Guard struct {
	placed *expirable.LRU[string, int64]
	group  singleflight.Group
}

// New creates a Guard holding up to size keys for ttl each.
func New(size int, ttl time.Duration) *Guard {
	if size <= 0 {
		size = 10_000
	}
	return &Guard{placed: expirable.NewLRU[string, int64](size, nil, ttl)}
}

// Do runs place once per (userID, key). Later and concurrent calls with the
// same pair get the first order id back with replayed set. Failed placements
// are not remembered, so the client may retry them.
func (g *Guard) Do(ctx context.Context, userID int64, key string, place func(context.Context) (int64, error)) (id int64, replayed bool, err error) {
	k := strconv.FormatInt(userID, 10) + ":" + key
	if id, ok := g.placed.Get(k); ok {
		return id, true, nil
	}

	var leader bool
	v, err, _ := g.group.Do(k, func() (any, error) {
		if id, ok := g.placed.Get(k); ok {
			return id, nil
		}
		leader = true
		// Followers share this placement, so the leader hanging up must not
		// cancel it.
		id, err := place(context.WithoutCancel(ctx))
		if err != nil {
			return int64(0), err
		}
		g.placed.Add(k, id)
		return id, nil
	})
	if err != nil {
		return 0, false, err
	}
	return v.(int64), !leader, nil
}

// Forget drops a remembered key.
func (g *Guard) Forget(userID int64, key string) {
	g.placed.Remove(strconv.FormatInt(userID, 10) + ":" + key)
}

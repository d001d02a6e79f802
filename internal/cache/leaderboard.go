package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Sismei/CreamCurrency/internal/domain"
)

// LeaderboardCache holds short-lived ranked result snapshots keyed by the exact
// (currency, limit, offset) triple, absorbing bursts of leaderboard requests.
// A snapshot older than the TTL is never served; go-cache expires it and the
// next request recomputes.
type LeaderboardCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a snapshot cache with the given validity window
func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func topKey(currencyID string, limit, offset int) string {
	return fmt.Sprintf("%s-%d-%d", currencyID, limit, offset)
}

// Get returns a fresh snapshot for the triple, if one exists
func (c *LeaderboardCache) Get(currencyID string, limit, offset int) ([]domain.TopEntry, bool) {
	obj, found := c.cache.Get(topKey(currencyID, limit, offset))
	if !found {
		return nil, false
	}
	return obj.([]domain.TopEntry), true
}

// Set stores a snapshot for the triple with a fresh capture timestamp
func (c *LeaderboardCache) Set(currencyID string, limit, offset int, entries []domain.TopEntry) {
	c.cache.Set(topKey(currencyID, limit, offset), entries, c.ttl)
}

// Clear removes all snapshots
func (c *LeaderboardCache) Clear() {
	c.cache.Flush()
}

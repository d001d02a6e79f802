package cache

import (
	"strings"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// BalanceCache is a concurrency-safe in-memory mapping from (player, currency)
// to the last known balance. It carries no durability contract: entries are
// populated lazily on read and invalidated when a store write fails.
type BalanceCache struct {
	cache *gocache.Cache
}

// NewBalanceCache creates an empty balance cache. Entries never expire on their
// own; the ledger owns their lifecycle.
func NewBalanceCache() *BalanceCache {
	return &BalanceCache{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Key format: "uuid:currencyId"
func balanceKey(playerID uuid.UUID, currencyID string) string {
	return playerID.String() + ":" + currencyID
}

// Get returns the cached balance for the key, if present
func (c *BalanceCache) Get(playerID uuid.UUID, currencyID string) (float64, bool) {
	obj, found := c.cache.Get(balanceKey(playerID, currencyID))
	if !found {
		return 0, false
	}
	return obj.(float64), true
}

// Set stores a balance snapshot for the key
func (c *BalanceCache) Set(playerID uuid.UUID, currencyID string, balance float64) {
	c.cache.Set(balanceKey(playerID, currencyID), balance, gocache.NoExpiration)
}

// Invalidate removes the entry for the key, forcing the next read back to the
// store
func (c *BalanceCache) Invalidate(playerID uuid.UUID, currencyID string) {
	c.cache.Delete(balanceKey(playerID, currencyID))
}

// InvalidatePlayer removes every entry for the player, across all currencies.
// Called on player disconnect to bound memory.
func (c *BalanceCache) InvalidatePlayer(playerID uuid.UUID) {
	prefix := playerID.String() + ":"
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

// Clear removes all entries
func (c *BalanceCache) Clear() {
	c.cache.Flush()
}

// Contains reports whether an entry exists for the key
func (c *BalanceCache) Contains(playerID uuid.UUID, currencyID string) bool {
	_, found := c.cache.Get(balanceKey(playerID, currencyID))
	return found
}

// SettingsCache is a concurrency-safe in-memory mapping from player to the
// payments-disabled flag, same shape as BalanceCache.
type SettingsCache struct {
	cache *gocache.Cache
}

// NewSettingsCache creates an empty settings cache
func NewSettingsCache() *SettingsCache {
	return &SettingsCache{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the cached payments-disabled flag for the player, if present
func (c *SettingsCache) Get(playerID uuid.UUID) (bool, bool) {
	obj, found := c.cache.Get(playerID.String())
	if !found {
		return false, false
	}
	return obj.(bool), true
}

// Set stores the payments-disabled flag for the player
func (c *SettingsCache) Set(playerID uuid.UUID, disabled bool) {
	c.cache.Set(playerID.String(), disabled, gocache.NoExpiration)
}

// Invalidate removes the entry for the player
func (c *SettingsCache) Invalidate(playerID uuid.UUID) {
	c.cache.Delete(playerID.String())
}

// Clear removes all entries
func (c *SettingsCache) Clear() {
	c.cache.Flush()
}

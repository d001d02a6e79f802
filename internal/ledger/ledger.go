// Package ledger orchestrates balance reads and writes across the in-memory
// caches and the backing store. Reads are served from cache when possible;
// every store round-trip runs on a bounded worker pool and is exposed to the
// caller as a completion handle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/async"
	"github.com/Sismei/CreamCurrency/internal/cache"
	"github.com/Sismei/CreamCurrency/internal/domain"
	"github.com/Sismei/CreamCurrency/internal/logger"
	"github.com/Sismei/CreamCurrency/internal/repository"
)

// ErrInsufficientFunds reports a withdrawal denied because the current balance
// is below the requested amount. Distinguishable from store faults via
// errors.Is.
var ErrInsufficientFunds = errors.New("insufficient funds")

// StartBalanceProvider supplies the synthesized starting balance for a
// currency. A player's first-ever read opens their cache entry at this value
// without writing the store.
type StartBalanceProvider interface {
	StartBalance(currencyID string) float64
}

// Ledger owns the lifecycle of the three cache structures and serializes all
// durable mutation through the backing store's own atomic statements. It holds
// no per-key locks.
type Ledger struct {
	balances repository.BalanceRepository
	settings repository.SettingsRepository
	starts   StartBalanceProvider

	cache    *cache.BalanceCache
	prefs    *cache.SettingsCache
	top      *cache.LeaderboardCache

	pool *async.Pool
	log  *slog.Logger
}

// New creates a ledger over the given repositories. Schema bootstrap runs
// asynchronously on the worker pool; a bootstrap failure is logged and later
// operations against the affected table surface their own errors.
func New(balances repository.BalanceRepository, settings repository.SettingsRepository, starts StartBalanceProvider, leaderboardTTL time.Duration) *Ledger {
	l := &Ledger{
		balances: balances,
		settings: settings,
		starts:   starts,
		cache:    cache.NewBalanceCache(),
		prefs:    cache.NewSettingsCache(),
		top:      cache.NewLeaderboardCache(leaderboardTTL),
		pool:     async.NewPool(0),
		log:      logger.WithComponent("ledger"),
	}

	l.pool.Submit(func() {
		if err := l.balances.EnsureSchema(context.Background()); err != nil {
			l.log.Error("Failed to bootstrap balances schema", "error", err)
		}
		if err := l.settings.EnsureSchema(context.Background()); err != nil {
			l.log.Error("Failed to bootstrap settings schema", "error", err)
		}
	})

	return l
}

// GetBalance returns the player's balance for a currency, serving from cache
// when possible. A never-persisted pair resolves to the currency's starting
// balance without writing the store. A store fault resolves the handle with an
// error and leaves the cache unpopulated.
func (l *Ledger) GetBalance(ctx context.Context, playerID uuid.UUID, currencyID string) *async.Future[float64] {
	if cached, ok := l.cache.Get(playerID, currencyID); ok {
		return async.Completed(cached)
	}

	return async.Go(l.pool, func() (float64, error) {
		balance, found, err := l.balances.GetBalance(ctx, playerID, currencyID)
		if err != nil {
			return 0, fmt.Errorf("failed to get balance for %s: %w", playerID, err)
		}
		if !found {
			balance = l.starts.StartBalance(currencyID)
		}
		l.cache.Set(playerID, currencyID, balance)
		return balance, nil
	})
}

// SetBalance sets the balance for (player, currency) to an absolute amount.
// The cache reflects the new value immediately; if the store upsert fails the
// entry is invalidated so the next read goes back to the store.
func (l *Ledger) SetBalance(ctx context.Context, playerID uuid.UUID, playerName, currencyID string, amount float64) *async.Future[float64] {
	l.cache.Set(playerID, currencyID, amount)

	return async.Go(l.pool, func() (float64, error) {
		if err := l.balances.UpsertBalance(ctx, playerID, playerName, currencyID, amount); err != nil {
			l.cache.Invalidate(playerID, currencyID)
			return 0, fmt.Errorf("failed to set balance for %s: %w", playerID, err)
		}
		return amount, nil
	})
}

// AddBalance applies a delta to the balance for (player, currency). The delta
// is committed by a single store-side increment statement, so concurrent
// deltas on the same key are both durably applied. The cache is bumped
// optimistically and reconciled to the committed value before the handle
// resolves.
func (l *Ledger) AddBalance(ctx context.Context, playerID uuid.UUID, playerName, currencyID string, delta float64) *async.Future[float64] {
	if current, ok := l.cache.Get(playerID, currencyID); ok {
		l.cache.Set(playerID, currencyID, current+delta)
	}

	return async.Go(l.pool, func() (float64, error) {
		affected, err := l.balances.AddBalance(ctx, playerID, currencyID, delta)
		if err != nil {
			l.cache.Invalidate(playerID, currencyID)
			return 0, fmt.Errorf("failed atomic add for %s: %w", playerID, err)
		}

		if !affected {
			// First write for this pair: persist start balance plus delta.
			value := l.starts.StartBalance(currencyID) + delta
			l.cache.Set(playerID, currencyID, value)
			if err := l.balances.UpsertBalance(ctx, playerID, playerName, currencyID, value); err != nil {
				l.cache.Invalidate(playerID, currencyID)
				return 0, fmt.Errorf("failed to create balance row for %s: %w", playerID, err)
			}
			return value, nil
		}

		if playerName != "" {
			// Opportunistic refresh of the denormalized name, best effort.
			if err := l.balances.UpdateName(ctx, playerID, playerName, currencyID); err != nil {
				l.log.Debug("Failed to refresh player name", "player", playerID, "error", err)
			}
		}

		// Reconcile the optimistic bump to the committed value.
		balance, found, err := l.balances.GetBalance(ctx, playerID, currencyID)
		if err != nil || !found {
			l.cache.Invalidate(playerID, currencyID)
			if err == nil {
				err = errors.New("balance row missing after increment")
			}
			return 0, fmt.Errorf("failed to reconcile balance for %s: %w", playerID, err)
		}
		l.cache.Set(playerID, currencyID, balance)
		return balance, nil
	})
}

// Withdraw removes amount from the player's balance if sufficient funds
// exist, resolving with ErrInsufficientFunds otherwise. The funds check and
// the delta are not atomic with respect to each other: two concurrent
// withdrawals can both observe sufficient funds, and the store applies each
// delta atomically but their sum may drive the balance negative.
func (l *Ledger) Withdraw(ctx context.Context, playerID uuid.UUID, playerName, currencyID string, amount float64) *async.Future[float64] {
	balanceFuture := l.GetBalance(ctx, playerID, currencyID)

	return async.Run(func() (float64, error) {
		current, err := balanceFuture.Wait(ctx)
		if err != nil {
			return 0, err
		}
		if current < amount {
			return current, ErrInsufficientFunds
		}
		return l.AddBalance(ctx, playerID, playerName, currencyID, -amount).Wait(ctx)
	})
}

// TopBalances returns the ranked balances for a currency, serving a cached
// snapshot when one is fresh. At most one store query is issued per
// (currency, limit, offset) triple per TTL window.
func (l *Ledger) TopBalances(ctx context.Context, currencyID string, limit, offset int) *async.Future[[]domain.TopEntry] {
	if cached, ok := l.top.Get(currencyID, limit, offset); ok {
		return async.Completed(cached)
	}

	return async.Go(l.pool, func() ([]domain.TopEntry, error) {
		entries, err := l.balances.TopBalances(ctx, currencyID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to get top balances: %w", err)
		}
		l.top.Set(currencyID, limit, offset, entries)
		return entries, nil
	})
}

// TopBalancesFresh returns the ranked balances with display names, always
// querying the store. Used by paginated displays where a stale rank position
// is undesirable.
func (l *Ledger) TopBalancesFresh(ctx context.Context, currencyID string, limit, offset int) *async.Future[[]domain.TopEntry] {
	return async.Go(l.pool, func() ([]domain.TopEntry, error) {
		entries, err := l.balances.TopBalances(ctx, currencyID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to get top balances: %w", err)
		}
		return entries, nil
	})
}

// TotalBalance sums the circulating total of a currency directly from the
// store, uncached.
func (l *Ledger) TotalBalance(ctx context.Context, currencyID string) *async.Future[float64] {
	return async.Go(l.pool, func() (float64, error) {
		total, err := l.balances.TotalBalance(ctx, currencyID)
		if err != nil {
			return 0, fmt.Errorf("failed to get total balance for %s: %w", currencyID, err)
		}
		return total, nil
	})
}

// PaymentsDisabled reports whether the player has opted out of receiving
// payments, defaulting to enabled for players never persisted.
func (l *Ledger) PaymentsDisabled(ctx context.Context, playerID uuid.UUID) *async.Future[bool] {
	if cached, ok := l.prefs.Get(playerID); ok {
		return async.Completed(cached)
	}

	return async.Go(l.pool, func() (bool, error) {
		disabled, found, err := l.settings.GetPaymentsDisabled(ctx, playerID)
		if err != nil {
			return false, fmt.Errorf("failed to get settings for %s: %w", playerID, err)
		}
		if !found {
			disabled = false
		}
		l.prefs.Set(playerID, disabled)
		return disabled, nil
	})
}

// TogglePayments flips the player's payments-disabled flag. The cache reflects
// the new value immediately; on a persistence failure the cache entry is
// removed and the handle resolves with the pre-toggle value and the error.
func (l *Ledger) TogglePayments(ctx context.Context, playerID uuid.UUID) *async.Future[bool] {
	currentFuture := l.PaymentsDisabled(ctx, playerID)

	return async.Run(func() (bool, error) {
		current, err := currentFuture.Wait(ctx)
		if err != nil {
			return false, err
		}

		newValue := !current
		l.prefs.Set(playerID, newValue)

		return async.Go(l.pool, func() (bool, error) {
			if err := l.settings.UpsertPaymentsDisabled(ctx, playerID, newValue); err != nil {
				l.prefs.Invalidate(playerID)
				return current, fmt.Errorf("failed to update settings for %s: %w", playerID, err)
			}
			return newValue, nil
		}).Wait(ctx)
	})
}

// Cached returns the cached balance for (player, currency) without touching
// the store. Used by callers that must never block, such as the placeholder
// resolver.
func (l *Ledger) Cached(playerID uuid.UUID, currencyID string) (float64, bool) {
	return l.cache.Get(playerID, currencyID)
}

// InvalidatePlayer drops every cache entry for the player. Called on player
// disconnect to bound memory.
func (l *Ledger) InvalidatePlayer(playerID uuid.UUID) {
	l.cache.InvalidatePlayer(playerID)
	l.prefs.Invalidate(playerID)
}

// ClearCaches drops every cached entry across all three cache structures
func (l *Ledger) ClearCaches() {
	l.cache.Clear()
	l.prefs.Clear()
	l.top.Clear()
}

// Close drains the worker pool. In-flight operations complete; new operations
// must not be submitted after Close.
func (l *Ledger) Close() {
	l.pool.Close()
}

package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sismei/CreamCurrency/internal/repository/memstore"
)

type startBalances map[string]float64

func (s startBalances) StartBalance(currencyID string) float64 {
	return s[currencyID]
}

func newTestLedger(t *testing.T, starts startBalances) (*Ledger, *memstore.BalanceStore, *memstore.SettingsStore) {
	t.Helper()
	balances := memstore.NewBalanceStore()
	settings := memstore.NewSettingsStore()
	l := New(balances, settings, starts, 60*time.Second)
	t.Cleanup(l.Close)
	return l, balances, settings
}

func TestLedger_GetBalance(t *testing.T) {
	ctx := context.Background()
	player := uuid.New()

	t.Run("FirstReadSynthesizesStartBalance", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"gems": 10})

		balance, err := l.GetBalance(ctx, player, "gems").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10.0, balance)

		// The synthesized balance opens the cache entry without writing the
		// store.
		_, exists := balances.Row(player, "gems")
		assert.False(t, exists)
	})

	t.Run("SecondReadServedFromCache", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		_, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		require.NoError(t, err)
		before := balances.GetCalls

		balance, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.0, balance)
		assert.Equal(t, before, balances.GetCalls)
	})

	t.Run("StoreErrorSurfacedAndCacheUnpopulated", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 5})
		balances.SetFailing(true)

		_, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		assert.ErrorIs(t, err, memstore.ErrUnavailable)

		_, cached := l.Cached(player, "money")
		assert.False(t, cached)
	})
}

func TestLedger_SetBalance(t *testing.T) {
	ctx := context.Background()
	player := uuid.New()

	t.Run("ReadYourWrite", func(t *testing.T) {
		l, _, _ := newTestLedger(t, startBalances{})

		setFuture := l.SetBalance(ctx, player, "Alice", "money", 100)

		// Visible from cache immediately, before the upsert is confirmed.
		balance, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100.0, balance)

		_, err = setFuture.Wait(ctx)
		require.NoError(t, err)
	})

	t.Run("PersistsRow", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{})

		_, err := l.SetBalance(ctx, player, "Alice", "money", 42).Wait(ctx)
		require.NoError(t, err)

		stored, exists := balances.Row(player, "money")
		require.True(t, exists)
		assert.Equal(t, 42.0, stored)
	})

	t.Run("FailureInvalidatesCache", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{})
		balances.SetFailing(true)

		_, err := l.SetBalance(ctx, player, "Alice", "money", 42).Wait(ctx)
		assert.ErrorIs(t, err, memstore.ErrUnavailable)

		// The optimistic entry must not survive a failed write.
		_, cached := l.Cached(player, "money")
		assert.False(t, cached)
	})
}

func TestLedger_AddBalance(t *testing.T) {
	ctx := context.Background()
	player := uuid.New()

	t.Run("FirstWritePersistsStartPlusDelta", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"gems": 10})

		balance, err := l.AddBalance(ctx, player, "Alice", "gems", 5).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 15.0, balance)

		stored, exists := balances.Row(player, "gems")
		require.True(t, exists)
		assert.Equal(t, 15.0, stored)
	})

	t.Run("SerialDeltasConverge", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		deltas := []float64{100, -30, 7.5, -0.5}
		var final float64
		for _, d := range deltas {
			var err error
			final, err = l.AddBalance(ctx, player, "Alice", "money", d).Wait(ctx)
			require.NoError(t, err)
		}
		assert.Equal(t, 77.0, final)

		balance, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 77.0, balance)

		stored, _ := balances.Row(player, "money")
		assert.Equal(t, 77.0, stored)
	})

	t.Run("ConcurrentDeltasAreNotLost", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		// Seed the row so every increment hits the store-side atomic path.
		_, err := l.SetBalance(ctx, player, "Alice", "money", 0).Wait(ctx)
		require.NoError(t, err)

		const n = 100
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.AddBalance(ctx, player, "", "money", 1).Wait(ctx)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, _ := balances.Row(player, "money")
		assert.Equal(t, float64(n), stored)

		// The cache reconciles to the committed value.
		balance, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(n), balance)
	})

	t.Run("FailureInvalidatesCache", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		_, err := l.SetBalance(ctx, player, "Alice", "money", 50).Wait(ctx)
		require.NoError(t, err)

		balances.SetFailing(true)
		_, err = l.AddBalance(ctx, player, "", "money", 10).Wait(ctx)
		assert.ErrorIs(t, err, memstore.ErrUnavailable)

		_, cached := l.Cached(player, "money")
		assert.False(t, cached)
	})

	t.Run("RefreshesDenormalizedName", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		_, err := l.AddBalance(ctx, player, "Alice", "money", 10).Wait(ctx)
		require.NoError(t, err)
		_, err = l.AddBalance(ctx, player, "Alicia", "money", 10).Wait(ctx)
		require.NoError(t, err)

		entries, err := balances.TopBalances(ctx, "money", 1, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Alicia", entries[0].PlayerName)
	})
}

func TestLedger_Withdraw(t *testing.T) {
	ctx := context.Background()
	player := uuid.New()

	t.Run("Success", func(t *testing.T) {
		l, _, _ := newTestLedger(t, startBalances{"money": 0})

		_, err := l.SetBalance(ctx, player, "Alice", "money", 500).Wait(ctx)
		require.NoError(t, err)

		balance, err := l.Withdraw(ctx, player, "Alice", "money", 200).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 300.0, balance)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		_, err := l.SetBalance(ctx, player, "Alice", "money", 50).Wait(ctx)
		require.NoError(t, err)

		_, err = l.Withdraw(ctx, player, "Alice", "money", 100).Wait(ctx)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		// Balance unchanged in cache and store.
		balance, err := l.GetBalance(ctx, player, "money").Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50.0, balance)
		stored, _ := balances.Row(player, "money")
		assert.Equal(t, 50.0, stored)
	})

	t.Run("StoreFaultDistinguishableFromDenial", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})
		balances.SetFailing(true)

		_, err := l.Withdraw(ctx, player, "Alice", "money", 10).Wait(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInsufficientFunds)
		assert.ErrorIs(t, err, memstore.ErrUnavailable)
	})
}

func TestLedger_TopBalances(t *testing.T) {
	ctx := context.Background()

	t.Run("SnapshotServedWithinTTL", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		a, b := uuid.New(), uuid.New()
		_, err := l.SetBalance(ctx, a, "Alice", "money", 100).Wait(ctx)
		require.NoError(t, err)
		_, err = l.SetBalance(ctx, b, "Bob", "money", 200).Wait(ctx)
		require.NoError(t, err)

		first, err := l.TopBalances(ctx, "money", 10, 0).Wait(ctx)
		require.NoError(t, err)
		calls := balances.TopCalls

		second, err := l.TopBalances(ctx, "money", 10, 0).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, calls, balances.TopCalls)
	})

	t.Run("ExpiredSnapshotRecomputed", func(t *testing.T) {
		balances := memstore.NewBalanceStore()
		l := New(balances, memstore.NewSettingsStore(), startBalances{}, 20*time.Millisecond)
		t.Cleanup(l.Close)

		_, err := l.TopBalances(ctx, "money", 10, 0).Wait(ctx)
		require.NoError(t, err)
		calls := balances.TopCalls

		time.Sleep(50 * time.Millisecond)

		_, err = l.TopBalances(ctx, "money", 10, 0).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, calls+1, balances.TopCalls)
	})

	t.Run("FreshVariantBypassesCache", func(t *testing.T) {
		l, balances, _ := newTestLedger(t, startBalances{"money": 0})

		_, err := l.TopBalancesFresh(ctx, "money", 10, 0).Wait(ctx)
		require.NoError(t, err)
		calls := balances.TopCalls

		_, err = l.TopBalancesFresh(ctx, "money", 10, 0).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, calls+1, balances.TopCalls)
	})
}

func TestLedger_TotalBalance(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, startBalances{"money": 0})

	a, b := uuid.New(), uuid.New()
	_, err := l.SetBalance(ctx, a, "Alice", "money", 150).Wait(ctx)
	require.NoError(t, err)
	_, err = l.SetBalance(ctx, b, "Bob", "money", 50).Wait(ctx)
	require.NoError(t, err)

	total, err := l.TotalBalance(ctx, "money").Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200.0, total)
}

func TestLedger_Payments(t *testing.T) {
	ctx := context.Background()
	player := uuid.New()

	t.Run("DefaultsToEnabled", func(t *testing.T) {
		l, _, _ := newTestLedger(t, startBalances{})

		disabled, err := l.PaymentsDisabled(ctx, player).Wait(ctx)
		require.NoError(t, err)
		assert.False(t, disabled)
	})

	t.Run("ToggleTwiceReturnsToOriginal", func(t *testing.T) {
		l, _, _ := newTestLedger(t, startBalances{})

		disabled, err := l.TogglePayments(ctx, player).Wait(ctx)
		require.NoError(t, err)
		assert.True(t, disabled)

		disabled, err = l.TogglePayments(ctx, player).Wait(ctx)
		require.NoError(t, err)
		assert.False(t, disabled)
	})

	t.Run("ToggleFailureReturnsPreToggleValue", func(t *testing.T) {
		l, _, settings := newTestLedger(t, startBalances{})

		disabled, err := l.TogglePayments(ctx, player).Wait(ctx)
		require.NoError(t, err)
		require.True(t, disabled)

		settings.SetFailing(true)
		effective, err := l.TogglePayments(ctx, player).Wait(ctx)
		require.Error(t, err)
		assert.True(t, effective)

		// The cache entry is removed, forcing re-derivation from the store.
		settings.SetFailing(false)
		disabled, err = l.PaymentsDisabled(ctx, player).Wait(ctx)
		require.NoError(t, err)
		assert.True(t, disabled)
	})
}

func TestLedger_InvalidatePlayer(t *testing.T) {
	ctx := context.Background()
	player := uuid.New()
	l, _, _ := newTestLedger(t, startBalances{"money": 0, "gems": 10})

	_, err := l.GetBalance(ctx, player, "money").Wait(ctx)
	require.NoError(t, err)
	_, err = l.GetBalance(ctx, player, "gems").Wait(ctx)
	require.NoError(t, err)

	l.InvalidatePlayer(player)

	_, cached := l.Cached(player, "money")
	assert.False(t, cached)
	_, cached = l.Cached(player, "gems")
	assert.False(t, cached)
}

func TestLedger_DepositWithdrawScenario(t *testing.T) {
	ctx := context.Background()
	playerA := uuid.New()
	l, _, _ := newTestLedger(t, startBalances{"gold": 0})

	_, err := l.AddBalance(ctx, playerA, "A", "gold", 500).Wait(ctx)
	require.NoError(t, err)

	balance, err := l.Withdraw(ctx, playerA, "A", "gold", 200).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300.0, balance)

	top, err := l.TopBalances(ctx, "gold", 1, 0).Wait(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, playerA, top[0].PlayerID)
	assert.Equal(t, 300.0, top[0].Balance)
}

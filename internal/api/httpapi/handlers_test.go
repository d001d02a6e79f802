package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sismei/CreamCurrency/internal/audit"
	"github.com/Sismei/CreamCurrency/internal/currency"
	"github.com/Sismei/CreamCurrency/internal/economy"
	"github.com/Sismei/CreamCurrency/internal/ledger"
	"github.com/Sismei/CreamCurrency/internal/placeholder"
	"github.com/Sismei/CreamCurrency/internal/repository/memstore"
)

type fixture struct {
	router      *mux.Router
	ledger      *ledger.Ledger
	store       *memstore.BalanceStore
	currencyDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "money.yml"), []byte("name: Money\nsymbol: \"$\"\naliases: [bal]\n"), 0o644))

	currencies := currency.NewManager(dir, "money")
	require.NoError(t, currencies.Reload())

	store := memstore.NewBalanceStore()
	l := ledger.New(store, memstore.NewSettingsStore(), currencies, time.Minute)
	t.Cleanup(l.Close)

	eco := economy.NewService(l, currencies, audit.NopSink{})
	resolver := placeholder.NewResolver(l, currencies)

	h := NewHandler(l, currencies, eco, resolver, audit.NopSink{})
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &fixture{router: router, ledger: l, store: store, currencyDir: dir}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestGetBalance(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	t.Run("NewPlayerGetsStartBalance", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/money", player), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[balanceResponse](t, rec)
		assert.Equal(t, 0.0, resp.Balance)
		assert.Equal(t, "$0.00", resp.Formatted)
	})

	t.Run("ResolvesCurrencyAlias", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/bal", player), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "money", decode[balanceResponse](t, rec).CurrencyID)
	})

	t.Run("UnknownCurrency", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/shells", player), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("InvalidPlayerID", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/players/not-a-uuid/balances/money", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSetBalance(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodPut, fmt.Sprintf("/v1/players/%s/balances/money", player),
		amountRequest{Amount: 500, PlayerName: "alice", Admin: "console"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500.0, decode[balanceResponse](t, rec).Balance)

	row, ok := f.store.Row(player, "money")
	require.True(t, ok)
	assert.Equal(t, 500.0, row)
}

func TestSetBalance_RejectsNegative(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, fmt.Sprintf("/v1/players/%s/balances/money", uuid.New()),
		amountRequest{Amount: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", player),
		amountRequest{Amount: 300, PlayerName: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 300.0, decode[balanceResponse](t, rec).Balance)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/withdraw", player),
		amountRequest{Amount: 120, PlayerName: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 180.0, decode[balanceResponse](t, rec).Balance)
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/withdraw", player),
		amountRequest{Amount: 50, PlayerName: "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeposit_StoreFault(t *testing.T) {
	f := newFixture(t)
	f.store.SetFailing(true)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", uuid.New()),
		amountRequest{Amount: 50, PlayerName: "alice"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPay(t *testing.T) {
	f := newFixture(t)
	sender := uuid.New()
	receiver := uuid.New()

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", sender),
		amountRequest{Amount: 100, PlayerName: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/pay", payRequest{
		Sender: sender.String(), SenderName: "alice",
		Receiver: receiver.String(), ReceiverName: "bob",
		CurrencyID: "money", Amount: 40,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/money", receiver), nil)
	assert.Equal(t, 40.0, decode[balanceResponse](t, rec).Balance)
}

func TestPay_InsufficientFunds(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/pay", payRequest{
		Sender: uuid.New().String(), SenderName: "alice",
		Receiver: uuid.New().String(), ReceiverName: "bob",
		CurrencyID: "money", Amount: 40,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPay_ReceiverOptedOut(t *testing.T) {
	f := newFixture(t)
	sender := uuid.New()
	receiver := uuid.New()

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", sender),
		amountRequest{Amount: 100, PlayerName: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/payments/toggle", receiver), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/pay", payRequest{
		Sender: sender.String(), SenderName: "alice",
		Receiver: receiver.String(), ReceiverName: "bob",
		CurrencyID: "money", Amount: 40,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPaymentsToggle(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/payments", player), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["payments_disabled"])

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/payments/toggle", player), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["payments_disabled"])

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/payments", player), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["payments_disabled"])
}

func TestResolvePlaceholder(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/placeholders/symbol_money", player), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "$", decode[map[string]string](t, rec)["value"])
}

func TestInvalidatePlayer(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/money", player), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := f.ledger.Cached(player, "money")
	require.True(t, ok)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v1/players/%s/cache", player), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok = f.ledger.Cached(player, "money")
	assert.False(t, ok)
}

func TestListCurrencies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/currencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var currencies []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&currencies))
	assert.Len(t, currencies, 1)
}

func TestTopBalances(t *testing.T) {
	f := newFixture(t)
	rich := uuid.New()
	poor := uuid.New()

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", rich),
		amountRequest{Amount: 900, PlayerName: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", poor),
		amountRequest{Amount: 10, PlayerName: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/currencies/money/top?limit=1&fresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0]["player_name"])
}

func TestTopBalances_FreshIssuesSingleStoreQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/currencies/money/top?fresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A fresh request on a cold cache must not also run the cached-path query.
	assert.Equal(t, 1, f.store.TopCalls)
}

func TestTopBalances_CachedPathStillServedAfterFresh(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/currencies/money/top?fresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The fresh variant caches nothing, so the cached path queries once more.
	rec = f.do(t, http.MethodGet, "/v1/currencies/money/top", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.store.TopCalls)

	rec = f.do(t, http.MethodGet, "/v1/currencies/money/top", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.store.TopCalls)
}

func TestGetBalance_CurrencyDroppedByReload(t *testing.T) {
	f := newFixture(t)
	player := uuid.New()

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/money", player), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, os.Remove(filepath.Join(f.currencyDir, "money.yml")))
	rec = f.do(t, http.MethodPost, "/v1/currencies/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/players/%s/balances/money", player), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTotalBalance(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/players/%s/balances/money/deposit", uuid.New()),
		amountRequest{Amount: 70, PlayerName: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/currencies/money/total", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 70.0, decode[map[string]float64](t, rec)["total"])
}

// Package placeholder resolves template tokens against the ledger's caches.
// Resolution must never block: a cold cache triggers an asynchronous load and
// returns a pending marker, so a subsequent resolution of the same token is
// served instantly.
package placeholder

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/currency"
	"github.com/Sismei/CreamCurrency/internal/ledger"
)

// Pending is returned while a balance is being loaded in the background
const Pending = "..."

// Resolver serves placeholder tokens of the form balance_<currency>,
// raw_balance_<currency>, formatted_<currency>, symbol_<currency> and
// name_<currency>.
type Resolver struct {
	ledger     *ledger.Ledger
	currencies *currency.Manager
}

// NewResolver creates a resolver over the given ledger and currency set
func NewResolver(l *ledger.Ledger, currencies *currency.Manager) *Resolver {
	return &Resolver{ledger: l, currencies: currencies}
}

// Resolve returns the replacement text for a token, or "" if the token is not
// recognized. Balance tokens read only the cache; a miss kicks off an async
// load and returns Pending (or "0" for raw tokens).
func (r *Resolver) Resolve(playerID uuid.UUID, token string) string {
	switch {
	case strings.HasPrefix(token, "raw_balance_"):
		currencyID := strings.TrimPrefix(token, "raw_balance_")
		if r.currencies.Get(currencyID) == nil {
			return "0"
		}
		if cached, ok := r.ledger.Cached(playerID, currencyID); ok {
			return strconv.FormatFloat(cached, 'f', -1, 64)
		}
		r.ledger.GetBalance(context.Background(), playerID, currencyID)
		return "0"

	case strings.HasPrefix(token, "balance_"):
		currencyID := strings.TrimPrefix(token, "balance_")
		cur := r.currencies.Get(currencyID)
		if cur == nil {
			return "N/A"
		}
		if cached, ok := r.ledger.Cached(playerID, currencyID); ok {
			return cur.Format(cached)
		}
		r.ledger.GetBalance(context.Background(), playerID, currencyID)
		return Pending

	case strings.HasPrefix(token, "formatted_"):
		currencyID := strings.TrimPrefix(token, "formatted_")
		cur := r.currencies.Get(currencyID)
		if cur == nil {
			return "N/A"
		}
		if cached, ok := r.ledger.Cached(playerID, currencyID); ok {
			return cur.FormatCompact(cached)
		}
		r.ledger.GetBalance(context.Background(), playerID, currencyID)
		return Pending

	case strings.HasPrefix(token, "symbol_"):
		if cur := r.currencies.Get(strings.TrimPrefix(token, "symbol_")); cur != nil {
			return cur.Symbol
		}
		return ""

	case strings.HasPrefix(token, "name_"):
		if cur := r.currencies.Get(strings.TrimPrefix(token, "name_")); cur != nil {
			return cur.Name
		}
		return "Unknown"
	}

	return ""
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/domain"
)

// BalanceRepository is the durable store for (player, currency) balance rows.
// The store owns serialization of concurrent writes: AddBalance must be a
// single server-side increment statement, never a read-modify-write pair.
type BalanceRepository interface {
	// EnsureSchema creates the balances table if missing and applies the
	// player_name column migration idempotently.
	EnsureSchema(ctx context.Context) error

	// GetBalance returns the stored balance and whether a row exists.
	GetBalance(ctx context.Context, playerID uuid.UUID, currencyID string) (float64, bool, error)

	// UpsertBalance inserts or replaces the row for (player, currency),
	// recording the display name when known.
	UpsertBalance(ctx context.Context, playerID uuid.UUID, playerName, currencyID string, balance float64) error

	// AddBalance applies balance = balance + delta to the existing row and
	// reports whether a row was affected. No row means the pair has never
	// been persisted.
	AddBalance(ctx context.Context, playerID uuid.UUID, currencyID string, delta float64) (bool, error)

	// UpdateName refreshes the denormalized display name on an existing row.
	UpdateName(ctx context.Context, playerID uuid.UUID, playerName, currencyID string) error

	// TopBalances returns rows for a currency ordered by balance descending.
	TopBalances(ctx context.Context, currencyID string, limit, offset int) ([]domain.TopEntry, error)

	// TotalBalance sums all balances for a currency.
	TotalBalance(ctx context.Context, currencyID string) (float64, error)
}

// SettingsRepository is the durable store for per-player settings
type SettingsRepository interface {
	// EnsureSchema creates the settings table if missing.
	EnsureSchema(ctx context.Context) error

	// GetPaymentsDisabled returns the stored flag and whether a row exists.
	GetPaymentsDisabled(ctx context.Context, playerID uuid.UUID) (bool, bool, error)

	// UpsertPaymentsDisabled inserts or replaces the player's flag.
	UpsertPaymentsDisabled(ctx context.Context, playerID uuid.UUID, disabled bool) error
}

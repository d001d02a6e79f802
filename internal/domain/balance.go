package domain

import "github.com/google/uuid"

// BalanceRecord is a durable (player, currency) balance row. PlayerName is a
// denormalized, best-effort copy of the player's last known display name and
// may be stale or empty.
type BalanceRecord struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name,omitempty"`
	CurrencyID string    `json:"currency_id"`
	Balance    float64   `json:"balance"`
}

// TopEntry is one row of a leaderboard query, ordered by balance descending
type TopEntry struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name,omitempty"`
	Balance    float64   `json:"balance"`
}

// PlayerSettings holds per-player preferences. PaymentsDisabled defaults to
// false for players that have never been persisted.
type PlayerSettings struct {
	PlayerID         uuid.UUID `json:"player_id"`
	PaymentsDisabled bool      `json:"payments_disabled"`
}

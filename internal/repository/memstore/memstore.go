// Package memstore provides in-memory repository implementations used by
// tests and local development. Writes are serialized by a single mutex, so the
// increment statement is atomic the same way a SQL store's single-row update
// is.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/domain"
)

// ErrUnavailable simulates a store outage when failure injection is enabled
var ErrUnavailable = errors.New("store unavailable")

type balanceKey struct {
	player   uuid.UUID
	currency string
}

// BalanceStore is an in-memory BalanceRepository with failure injection and
// query counting for cache behavior assertions.
type BalanceStore struct {
	mu       sync.Mutex
	rows     map[balanceKey]*domain.BalanceRecord
	fail     bool
	GetCalls int
	TopCalls int
}

// NewBalanceStore creates an empty in-memory balance store
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{rows: make(map[balanceKey]*domain.BalanceRecord)}
}

// SetFailing toggles failure injection: when enabled, every operation returns
// ErrUnavailable.
func (s *BalanceStore) SetFailing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// Row returns the stored balance and whether a row exists, bypassing failure
// injection. Test-side inspection only.
func (s *BalanceStore) Row(playerID uuid.UUID, currencyID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[balanceKey{playerID, currencyID}]
	if !ok {
		return 0, false
	}
	return row.Balance, true
}

func (s *BalanceStore) EnsureSchema(ctx context.Context) error {
	return nil
}

func (s *BalanceStore) GetBalance(ctx context.Context, playerID uuid.UUID, currencyID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.fail {
		return 0, false, ErrUnavailable
	}
	row, ok := s.rows[balanceKey{playerID, currencyID}]
	if !ok {
		return 0, false, nil
	}
	return row.Balance, true, nil
}

func (s *BalanceStore) UpsertBalance(ctx context.Context, playerID uuid.UUID, playerName, currencyID string, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	s.rows[balanceKey{playerID, currencyID}] = &domain.BalanceRecord{
		PlayerID:   playerID,
		PlayerName: playerName,
		CurrencyID: currencyID,
		Balance:    balance,
	}
	return nil
}

func (s *BalanceStore) AddBalance(ctx context.Context, playerID uuid.UUID, currencyID string, delta float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false, ErrUnavailable
	}
	row, ok := s.rows[balanceKey{playerID, currencyID}]
	if !ok {
		return false, nil
	}
	row.Balance += delta
	return true, nil
}

func (s *BalanceStore) UpdateName(ctx context.Context, playerID uuid.UUID, playerName, currencyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	if row, ok := s.rows[balanceKey{playerID, currencyID}]; ok {
		row.PlayerName = playerName
	}
	return nil
}

func (s *BalanceStore) TopBalances(ctx context.Context, currencyID string, limit, offset int) ([]domain.TopEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TopCalls++
	if s.fail {
		return nil, ErrUnavailable
	}

	var entries []domain.TopEntry
	for _, row := range s.rows {
		if row.CurrencyID == currencyID {
			entries = append(entries, domain.TopEntry{
				PlayerID:   row.PlayerID,
				PlayerName: row.PlayerName,
				Balance:    row.Balance,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Balance > entries[j].Balance })

	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *BalanceStore) TotalBalance(ctx context.Context, currencyID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, ErrUnavailable
	}
	var total float64
	for _, row := range s.rows {
		if row.CurrencyID == currencyID {
			total += row.Balance
		}
	}
	return total, nil
}

// SettingsStore is an in-memory SettingsRepository
type SettingsStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]bool
	fail bool
}

// NewSettingsStore creates an empty in-memory settings store
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{rows: make(map[uuid.UUID]bool)}
}

// SetFailing toggles failure injection
func (s *SettingsStore) SetFailing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *SettingsStore) EnsureSchema(ctx context.Context) error {
	return nil
}

func (s *SettingsStore) GetPaymentsDisabled(ctx context.Context, playerID uuid.UUID) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false, false, ErrUnavailable
	}
	disabled, ok := s.rows[playerID]
	return disabled, ok, nil
}

func (s *SettingsStore) UpsertPaymentsDisabled(ctx context.Context, playerID uuid.UUID, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	s.rows[playerID] = disabled
	return nil
}

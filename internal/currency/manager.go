package currency

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Sismei/CreamCurrency/internal/domain"
	"github.com/Sismei/CreamCurrency/internal/logger"
)

// Manager loads currency definitions from a directory of YAML files and serves
// lookups by id or alias. The routing table is immutable between reloads: Reload
// builds a complete replacement and swaps it in wholesale.
type Manager struct {
	dir       string
	primaryID string

	mu        sync.RWMutex
	byID      map[string]*domain.Currency
	routes    map[string]*domain.Currency // id and aliases, lowercased
	primary   *domain.Currency
}

// NewManager creates a manager for the given definitions directory. Call Reload
// to load the definitions.
func NewManager(dir, primaryID string) *Manager {
	return &Manager{
		dir:       dir,
		primaryID: primaryID,
		byID:      make(map[string]*domain.Currency),
		routes:    make(map[string]*domain.Currency),
	}
}

// Reload re-reads every *.yml file in the definitions directory and replaces
// the routing table atomically. A failed file is skipped with an error log;
// the reload itself only fails if the directory cannot be read.
func (m *Manager) Reload() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read currencies directory: %w", err)
	}

	byID := make(map[string]*domain.Currency)
	routes := make(map[string]*domain.Currency)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml")) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		cur, err := loadFile(id, filepath.Join(m.dir, name))
		if err != nil {
			logger.Error("Failed to load currency file", "file", name, "error", err)
			continue
		}
		byID[id] = cur
		routes[strings.ToLower(id)] = cur
		for _, alias := range cur.Aliases {
			routes[strings.ToLower(alias)] = cur
		}
		logger.Info("Loaded currency", "name", cur.Name, "id", id)
	}

	primary := byID[m.primaryID]
	if primary == nil {
		logger.Error("Primary currency not found in loaded currencies", "primary", m.primaryID)
		// Fall back to any loaded currency so the economy facade keeps working
		for _, cur := range byID {
			primary = cur
			logger.Warn("Falling back to primary currency", "id", cur.ID)
			break
		}
	}

	m.mu.Lock()
	m.byID = byID
	m.routes = routes
	m.primary = primary
	m.mu.Unlock()

	return nil
}

func loadFile(id, path string) (*domain.Currency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cur := &domain.Currency{
		ID:            id,
		Name:          id,
		SymbolBefore:  true,
		DecimalPlaces: 2,
		Payable:       true,
	}
	if err := yaml.Unmarshal(data, cur); err != nil {
		return nil, fmt.Errorf("failed to parse currency file: %w", err)
	}
	cur.ID = id
	return cur, nil
}

// Get returns the currency with the given id, or nil if unknown
func (m *Manager) Get(id string) *domain.Currency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// Resolve returns the currency matching an id or alias, case-insensitively
func (m *Manager) Resolve(idOrAlias string) *domain.Currency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes[strings.ToLower(idOrAlias)]
}

// Primary returns the primary currency, or nil if none loaded
func (m *Manager) Primary() *domain.Currency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.primary
}

// All returns every loaded currency
func (m *Manager) All() []*domain.Currency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Currency, 0, len(m.byID))
	for _, cur := range m.byID {
		out = append(out, cur)
	}
	return out
}

// StartBalance returns the configured starting balance for a currency id, or
// zero if the currency is unknown
func (m *Manager) StartBalance(id string) float64 {
	if cur := m.Get(id); cur != nil {
		return cur.StartBalance
	}
	return 0
}

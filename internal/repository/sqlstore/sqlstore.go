package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/Sismei/CreamCurrency/internal/repository"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavor for the backing store
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Store aggregates the repositories over a single connection pool
type Store struct {
	db *sql.DB
	repository.BalanceRepository
	repository.SettingsRepository
}

// NewStore creates a store for the given connection pool and dialect
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:                 db,
		BalanceRepository:  NewBalanceRepository(db, dialect),
		SettingsRepository: NewSettingsRepository(db, dialect),
	}
}

// EnsureSchema bootstraps both tables and runs pending migrations
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.BalanceRepository.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.SettingsRepository.EnsureSchema(ctx)
}

// rebind converts ?-style placeholders to the dialect's positional form.
// Queries are written once with ? and rewritten to $N for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

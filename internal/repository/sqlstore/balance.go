package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/domain"
	"github.com/Sismei/CreamCurrency/internal/logger"
	"github.com/Sismei/CreamCurrency/internal/repository"
)

const (
	sqlCreateBalances = `CREATE TABLE IF NOT EXISTS cream_balances (
		player_uuid VARCHAR(36) NOT NULL,
		player_name VARCHAR(32),
		currency_id VARCHAR(32) NOT NULL,
		balance DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (player_uuid, currency_id))`

	sqlSelectBalance = `SELECT balance FROM cream_balances WHERE player_uuid = ? AND currency_id = ?`

	sqlUpdateAdd = `UPDATE cream_balances SET balance = balance + ? WHERE player_uuid = ? AND currency_id = ?`

	sqlUpsertBalance = `INSERT INTO cream_balances (player_uuid, player_name, currency_id, balance) VALUES (?, ?, ?, ?)
		ON CONFLICT (player_uuid, currency_id) DO UPDATE SET balance = excluded.balance, player_name = excluded.player_name`

	sqlUpdateName = `UPDATE cream_balances SET player_name = ? WHERE player_uuid = ? AND currency_id = ?`

	sqlSelectTop = `SELECT player_uuid, player_name, balance FROM cream_balances
		WHERE currency_id = ? ORDER BY balance DESC LIMIT ? OFFSET ?`

	sqlSelectTotal = `SELECT COALESCE(SUM(balance), 0) FROM cream_balances WHERE currency_id = ?`

	// Migration for pre-name schemas. Postgres supports IF NOT EXISTS on
	// ADD COLUMN; SQLite needs a pragma probe first.
	sqlAddNameColumnPostgres = `ALTER TABLE cream_balances ADD COLUMN IF NOT EXISTS player_name VARCHAR(32)`
	sqlAddNameColumnSQLite   = `ALTER TABLE cream_balances ADD COLUMN player_name VARCHAR(32)`
	sqlNameColumnProbeSQLite = `SELECT COUNT(*) FROM pragma_table_info('cream_balances') WHERE name = 'player_name'`
)

type balanceRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewBalanceRepository(db *sql.DB, dialect Dialect) repository.BalanceRepository {
	return &balanceRepository{db: db, dialect: dialect}
}

func (r *balanceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlCreateBalances); err != nil {
		return fmt.Errorf("failed to create balances table: %w", err)
	}
	return r.migrateNameColumn(ctx)
}

func (r *balanceRepository) migrateNameColumn(ctx context.Context) error {
	if r.dialect == Postgres {
		if _, err := r.db.ExecContext(ctx, sqlAddNameColumnPostgres); err != nil {
			return fmt.Errorf("failed to add player_name column: %w", err)
		}
		return nil
	}

	var count int
	if err := r.db.QueryRowContext(ctx, sqlNameColumnProbeSQLite).Scan(&count); err != nil {
		return fmt.Errorf("failed to probe player_name column: %w", err)
	}
	if count == 0 {
		if _, err := r.db.ExecContext(ctx, sqlAddNameColumnSQLite); err != nil {
			return fmt.Errorf("failed to add player_name column: %w", err)
		}
	}
	return nil
}

func (r *balanceRepository) GetBalance(ctx context.Context, playerID uuid.UUID, currencyID string) (float64, bool, error) {
	logger.DatabaseCall("SELECT", "player", playerID, "currency", currencyID)

	var balance float64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(sqlSelectBalance), playerID.String(), currencyID).Scan(&balance)
	if err == sql.ErrNoRows {
		logger.DatabaseResult("SELECT", nil, "player", playerID, "currency", currencyID, "found", false)
		return 0, false, nil
	}
	logger.DatabaseResult("SELECT", err, "player", playerID, "currency", currencyID)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (r *balanceRepository) UpsertBalance(ctx context.Context, playerID uuid.UUID, playerName, currencyID string, balance float64) error {
	logger.DatabaseCall("UPSERT", "player", playerID, "currency", currencyID, "balance", balance)

	name := sql.NullString{String: playerName, Valid: playerName != ""}
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(sqlUpsertBalance), playerID.String(), name, currencyID, balance)
	logger.DatabaseResult("UPSERT", err, "player", playerID, "currency", currencyID)
	return err
}

func (r *balanceRepository) AddBalance(ctx context.Context, playerID uuid.UUID, currencyID string, delta float64) (bool, error) {
	logger.DatabaseCall("UPDATE", "player", playerID, "currency", currencyID, "delta", delta)

	res, err := r.db.ExecContext(ctx, r.dialect.rebind(sqlUpdateAdd), delta, playerID.String(), currencyID)
	if err != nil {
		logger.DatabaseResult("UPDATE", err, "player", playerID, "currency", currencyID)
		return false, err
	}
	rows, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", err, "player", playerID, "currency", currencyID, "rows", rows)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *balanceRepository) UpdateName(ctx context.Context, playerID uuid.UUID, playerName, currencyID string) error {
	logger.DatabaseCall("UPDATE", "player", playerID, "currency", currencyID)

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(sqlUpdateName), playerName, playerID.String(), currencyID)
	logger.DatabaseResult("UPDATE", err, "player", playerID, "currency", currencyID)
	return err
}

func (r *balanceRepository) TopBalances(ctx context.Context, currencyID string, limit, offset int) ([]domain.TopEntry, error) {
	logger.DatabaseCall("SELECT", "currency", currencyID, "limit", limit, "offset", offset)

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(sqlSelectTop), currencyID, limit, offset)
	if err != nil {
		logger.DatabaseResult("SELECT", err, "currency", currencyID)
		return nil, err
	}
	defer rows.Close()

	var entries []domain.TopEntry
	for rows.Next() {
		var (
			rawID string
			name  sql.NullString
			entry domain.TopEntry
		)
		if err := rows.Scan(&rawID, &name, &entry.Balance); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid player uuid in store: %w", err)
		}
		entry.PlayerID = id
		entry.PlayerName = name.String
		entries = append(entries, entry)
	}
	logger.DatabaseResult("SELECT", rows.Err(), "currency", currencyID, "entries", len(entries))
	return entries, rows.Err()
}

func (r *balanceRepository) TotalBalance(ctx context.Context, currencyID string) (float64, error) {
	logger.DatabaseCall("SELECT", "currency", currencyID)

	var total float64
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(sqlSelectTotal), currencyID).Scan(&total)
	logger.DatabaseResult("SELECT", err, "currency", currencyID)
	return total, err
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Sismei/CreamCurrency/internal/logger"
	"github.com/Sismei/CreamCurrency/internal/repository"
)

const (
	sqlCreateSettings = `CREATE TABLE IF NOT EXISTS cream_player_settings (
		player_uuid VARCHAR(36) PRIMARY KEY,
		payments_disabled BOOLEAN NOT NULL DEFAULT FALSE)`

	sqlSelectSettings = `SELECT payments_disabled FROM cream_player_settings WHERE player_uuid = ?`

	sqlUpsertSettings = `INSERT INTO cream_player_settings (player_uuid, payments_disabled) VALUES (?, ?)
		ON CONFLICT (player_uuid) DO UPDATE SET payments_disabled = excluded.payments_disabled`
)

type settingsRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSettingsRepository(db *sql.DB, dialect Dialect) repository.SettingsRepository {
	return &settingsRepository{db: db, dialect: dialect}
}

func (r *settingsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqlCreateSettings); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

func (r *settingsRepository) GetPaymentsDisabled(ctx context.Context, playerID uuid.UUID) (bool, bool, error) {
	logger.DatabaseCall("SELECT", "player", playerID)

	var disabled bool
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(sqlSelectSettings), playerID.String()).Scan(&disabled)
	if err == sql.ErrNoRows {
		logger.DatabaseResult("SELECT", nil, "player", playerID, "found", false)
		return false, false, nil
	}
	logger.DatabaseResult("SELECT", err, "player", playerID)
	if err != nil {
		return false, false, err
	}
	return disabled, true, nil
}

func (r *settingsRepository) UpsertPaymentsDisabled(ctx context.Context, playerID uuid.UUID, disabled bool) error {
	logger.DatabaseCall("UPSERT", "player", playerID, "disabled", disabled)

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(sqlUpsertSettings), playerID.String(), disabled)
	logger.DatabaseResult("UPSERT", err, "player", playerID)
	return err
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/spendtrack/internal/models"
)

// GetSettings retrieves the owner's settings, creating the default document
// on first read.
func (s *SQLiteStore) GetSettings(ctx context.Context, owner string) (models.Settings, error) {
	defaults := models.DefaultSettings()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (owner, display_name, currency) VALUES (?, ?, ?) ON CONFLICT(owner) DO NOTHING",
		owner, defaults.Name, defaults.Currency,
	)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to create settings: %w", err)
	}

	return s.readSettings(ctx, s.db, owner)
}

// MergeSettings applies the provided fields inside one transaction.
func (s *SQLiteStore) MergeSettings(ctx context.Context, owner string, patch models.SettingsPatch) (models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.readSettings(ctx, tx, owner)
	if err == errNoSettings {
		current = models.DefaultSettings()
	} else if err != nil {
		return models.Settings{}, err
	}

	merged := current.Merge(patch)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings (owner, display_name, currency) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET display_name = excluded.display_name, currency = excluded.currency`,
		owner, merged.Name, merged.Currency,
	)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to write settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Settings{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return merged, nil
}

var errNoSettings = fmt.Errorf("settings not found")

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) readSettings(ctx context.Context, q queryer, owner string) (models.Settings, error) {
	settings := models.DefaultSettings()
	err := q.QueryRowContext(ctx,
		"SELECT display_name, currency FROM settings WHERE owner = ?",
		owner,
	).Scan(&settings.Name, &settings.Currency)
	if err == sql.ErrNoRows {
		return models.Settings{}, errNoSettings
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings.WithDefaults(), nil
}

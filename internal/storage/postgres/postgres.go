// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/rpc"
	"github.com/mmynk/spendtrack/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    photo_url TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    reason TEXT NOT NULL,
    category TEXT NOT NULL,
    date TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    owner TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    currency TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_owner_date ON expenses(owner, date DESC);
`

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New connects to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{Pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

// ListExpenses returns the owner's expenses ordered by date descending.
func (s *Store) ListExpenses(ctx context.Context, owner string) ([]rpc.ExpenseDoc, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, owner, amount, reason, category, date, created_at
		 FROM expenses
		 WHERE owner = $1
		 ORDER BY date DESC, created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	out := []rpc.ExpenseDoc{}
	for rows.Next() {
		var (
			doc      rpc.ExpenseDoc
			category string
		)
		if err := rows.Scan(&doc.ID, &doc.Owner, &doc.Amount, &doc.Reason, &category, &doc.Date, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		doc.Category = models.Category(category)
		doc.Date = doc.Date.UTC()
		doc.CreatedAt = doc.CreatedAt.UTC()
		out = append(out, doc)
	}
	return out, rows.Err()
}

// InsertExpense persists a new expense document.
func (s *Store) InsertExpense(ctx context.Context, doc *rpc.ExpenseDoc) error {
	doc.ID = uuid.New().String()
	doc.CreatedAt = time.Now().UTC()
	doc.Date = doc.Date.UTC()

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO expenses (id, owner, amount, reason, category, date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.Owner, doc.Amount, doc.Reason, string(doc.Category), doc.Date, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense by owner and id.
func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	if _, err := s.Pool.Exec(ctx, "DELETE FROM expenses WHERE owner = $1 AND id = $2", owner, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

// GetSettings returns the owner's settings, creating defaults on first read.
func (s *Store) GetSettings(ctx context.Context, owner string) (models.Settings, error) {
	defaults := models.DefaultSettings()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO settings (owner, display_name, currency) VALUES ($1, $2, $3)
		 ON CONFLICT (owner) DO NOTHING`,
		owner, defaults.Name, defaults.Currency,
	)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to create settings: %w", err)
	}

	settings := defaults
	err = s.Pool.QueryRow(ctx,
		"SELECT display_name, currency FROM settings WHERE owner = $1", owner,
	).Scan(&settings.Name, &settings.Currency)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings.WithDefaults(), nil
}

// MergeSettings applies the patch with a row lock held.
func (s *Store) MergeSettings(ctx context.Context, owner string, patch models.SettingsPatch) (models.Settings, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current := models.DefaultSettings()
	err = tx.QueryRow(ctx,
		"SELECT display_name, currency FROM settings WHERE owner = $1 FOR UPDATE", owner,
	).Scan(&current.Name, &current.Currency)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	merged := current.WithDefaults().Merge(patch)
	_, err = tx.Exec(ctx,
		`INSERT INTO settings (owner, display_name, currency) VALUES ($1, $2, $3)
		 ON CONFLICT (owner) DO UPDATE SET display_name = EXCLUDED.display_name, currency = EXCLUDED.currency`,
		owner, merged.Name, merged.Currency,
	)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Settings{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return merged, nil
}

const userColumns = "id, email, display_name, photo_url, password_hash, created_at, updated_at"

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.Pool.Exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		user.ID, user.Email, user.DisplayName, user.PhotoURL, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns nil, nil if no account uses email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID returns nil, nil if no account has id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*models.User, error) {
	user := &models.User{}
	err := s.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+" = $1", value,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PhotoURL, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}

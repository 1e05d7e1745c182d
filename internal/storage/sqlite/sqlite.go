// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/rpc"
	"github.com/mmynk/spendtrack/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// Dates are stored as fixed-width UTC text so that ORDER BY date sorts
// chronologically.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; concurrent RPCs queue on the pool instead of
	// failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListExpenses returns the owner's expenses ordered by date descending.
func (s *SQLiteStore) ListExpenses(ctx context.Context, owner string) ([]rpc.ExpenseDoc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, amount, reason, category, date, created_at
		 FROM expenses WHERE owner = ? ORDER BY date DESC, created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	docs := []rpc.ExpenseDoc{}
	for rows.Next() {
		var (
			doc                 rpc.ExpenseDoc
			category            string
			date, createdAtText string
		)
		if err := rows.Scan(&doc.ID, &doc.Owner, &doc.Amount, &doc.Reason, &category, &date, &createdAtText); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		doc.Category = models.Category(category)
		if doc.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("failed to parse date of %s: %w", doc.ID, err)
		}
		if doc.CreatedAt, err = time.Parse(dateLayout, createdAtText); err != nil {
			return nil, fmt.Errorf("failed to parse created_at of %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return docs, nil
}

// InsertExpense persists a new expense document.
func (s *SQLiteStore) InsertExpense(ctx context.Context, doc *rpc.ExpenseDoc) error {
	doc.ID = uuid.New().String()
	doc.CreatedAt = time.Now().UTC()
	doc.Date = doc.Date.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner, amount, reason, category, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Owner, doc.Amount, doc.Reason, string(doc.Category),
		doc.Date.Format(dateLayout), doc.CreatedAt.Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	return nil
}

// DeleteExpense removes an expense by owner and id.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, owner, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE owner = ? AND id = ?", owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

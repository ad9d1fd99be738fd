package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// OptionRepository is a key/value store over the options table.
//
// It satisfies progress.Store, so batch progress can live in the same database as the users it tracks.
type OptionRepository struct {
	db *sql.DB
}

// NewOptionRepository creates a new OptionRepository with the given database connection
func NewOptionRepository(db *sql.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

// Get returns the value stored under name and whether it was present.
func (r *OptionRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query option %s: %w", name, err)
	}
	return value, true, nil
}

// Write stores value under name, replacing any previous value.
func (r *OptionRepository) Write(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, name, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write option %s: %w", name, err)
	}
	return nil
}

// Delete removes name. Deleting a missing option is not an error.
func (r *OptionRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM options WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", name, err)
	}
	return nil
}

// Package store is the durable side of the messaging core: users,
// conversations, messages and read receipts in a SQL database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"careportal/internal/database"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store manages persistence for the messaging core.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// New creates a Store over an opened database.
func New(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Now returns the store clock in UTC, truncated to the precision every
// supported database keeps.
func (s *Store) Now() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q(query string) string {
	return s.db.Dialect.Rebind(query)
}

// timeParam is a timestamp placeholder usable in a SELECT list.
func (s *Store) timeParam() string {
	if s.db.Dialect == database.Postgres {
		return "CAST(? AS TIMESTAMPTZ)"
	}
	return "?"
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

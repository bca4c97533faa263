package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func schemaFile(d Dialect) string {
	switch d {
	case MySQL:
		return "schema/mysql.sql"
	case SQLite:
		return "schema/sqlite3.sql"
	default:
		return "schema/postgres.sql"
	}
}

// Statements returns the schema of d split into single statements.
// The MySQL driver rejects multi-statement Exec unless multiStatements is set.
func Statements(d Dialect) ([]string, error) {
	data, err := schemaFS.ReadFile(schemaFile(d))
	if err != nil {
		return nil, err
	}

	var stmts []string
	for _, part := range strings.Split(string(data), ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

// Migrate creates the messaging tables if they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	stmts, err := Statements(db.Dialect)
	if err != nil {
		return fmt.Errorf("migrate: load schema: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL differences between the supported drivers.
// Queries in this module are written with "?" placeholders and pass through Rebind.
type Dialect int

const (
	MySQL Dialect = iota
	SQLite
	Postgres
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL, nil
	case "sqlite3":
		return SQLite, nil
	case "pgx":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite3"
	case Postgres:
		return "postgres"
	}
	return "unknown"
}

// Rebind rewrites "?" placeholders to "$n" for postgres.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

// InsertIgnore wraps an INSERT body ("INTO t (...) VALUES/SELECT ...") so that
// rows conflicting with a unique key are skipped instead of failing.
func (d Dialect) InsertIgnore(body string) string {
	switch d {
	case MySQL:
		return "INSERT IGNORE " + body
	case SQLite:
		return "INSERT OR IGNORE " + body
	default:
		return "INSERT " + body + " ON CONFLICT DO NOTHING"
	}
}

// IsUniqueViolation reports whether err is a unique or primary key violation
// raised by any of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return false
}

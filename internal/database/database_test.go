package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careportal/internal/config"
)

func TestRebind(t *testing.T) {
	q := "SELECT id FROM messages WHERE conversation_id = ? AND sender_id <> ?"

	assert.Equal(t, q, MySQL.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "SELECT id FROM messages WHERE conversation_id = $1 AND sender_id <> $2", Postgres.Rebind(q))
}

func TestInsertIgnore(t *testing.T) {
	body := "INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?)"

	assert.Equal(t, "INSERT IGNORE "+body, MySQL.InsertIgnore(body))
	assert.Equal(t, "INSERT OR IGNORE "+body, SQLite.InsertIgnore(body))
	assert.Equal(t, "INSERT "+body+" ON CONFLICT DO NOTHING", Postgres.InsertIgnore(body))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("pgx")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1045}))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestStatements(t *testing.T) {
	for _, d := range []Dialect{MySQL, SQLite, Postgres} {
		stmts, err := Statements(d)
		require.NoError(t, err, d.String())
		assert.NotEmpty(t, stmts, d.String())
		for _, s := range stmts {
			assert.NotContains(t, s, ";", d.String())
		}
	}
}

func TestOpenSQLite_MigratesAndDetectsUnique(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "portal.db"))
	require.NoError(t, err)
	defer db.Close()

	// 二回目のマイグレーションも成功する
	require.NoError(t, db.Migrate(ctx))

	_, err = db.ExecContext(ctx, "INSERT INTO users (id, name, email, role, created_at) VALUES ('u1', 'A', 'a@example.com', 'patient', CURRENT_TIMESTAMP)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO users (id, name, email, role, created_at) VALUES ('u2', 'B', 'a@example.com', 'doctor', CURRENT_TIMESTAMP)")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

// TestOpenMySQL はDB_HOSTが設定されているときだけ実行する
func TestOpenMySQL(t *testing.T) {
	if os.Getenv("DB_HOST") == "" {
		t.Skip("Skipping: DB_HOST not set")
	}

	cfg := config.Load()
	cfg.DBDriver = "mysql"
	db, err := Open(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping: could not connect to test database: %v", err)
	}
	defer db.Close()

	require.NoError(t, db.Migrate(context.Background()))
}

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careportal/internal/database"
)

var errNoRowCount = errors.New("driver cannot report affected rows")

// uncountedConnector is a driver whose statements succeed but cannot say how
// many rows they touched.
type uncountedConnector struct{}

func (c uncountedConnector) Connect(context.Context) (driver.Conn, error) { return uncountedConn{}, nil }
func (c uncountedConnector) Driver() driver.Driver                        { return c }
func (c uncountedConnector) Open(string) (driver.Conn, error)             { return uncountedConn{}, nil }

type uncountedConn struct{}

func (uncountedConn) Prepare(string) (driver.Stmt, error) { return uncountedStmt{}, nil }
func (uncountedConn) Close() error                        { return nil }
func (uncountedConn) Begin() (driver.Tx, error)           { return nil, errors.New("no transactions") }

type uncountedStmt struct{}

func (uncountedStmt) Close() error                               { return nil }
func (uncountedStmt) NumInput() int                              { return -1 }
func (uncountedStmt) Exec([]driver.Value) (driver.Result, error) { return uncountedResult{}, nil }
func (uncountedStmt) Query([]driver.Value) (driver.Rows, error)  { return nil, errors.New("no rows") }

type uncountedResult struct{}

func (uncountedResult) LastInsertId() (int64, error) { return 0, errNoRowCount }
func (uncountedResult) RowsAffected() (int64, error) { return 0, errNoRowCount }

func TestMarkRead_ReportsUncountedResult(t *testing.T) {
	db := sql.OpenDB(uncountedConnector{})
	t.Cleanup(func() { db.Close() })
	s := New(&database.DB{DB: db, Dialect: database.SQLite})

	n, err := s.MarkRead(context.Background(), "conv", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoRowCount)
	assert.Zero(t, n)
}

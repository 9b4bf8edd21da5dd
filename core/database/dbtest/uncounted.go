package dbtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrRowsAffected is what every statement run against Uncounted reports
// when asked how many rows it touched.
var ErrRowsAffected = errors.New("dbtest: rows affected unsupported")

// Uncounted returns a database whose writes succeed but cannot report the
// number of affected rows. Reads fail.
func Uncounted() *sqlx.DB {
	return sqlx.NewDb(sql.OpenDB(uncountedConnector{}), "sqlite")
}

type uncountedConnector struct{}

func (uncountedConnector) Connect(context.Context) (driver.Conn, error) { return uncountedConn{}, nil }
func (uncountedConnector) Driver() driver.Driver                        { return uncountedDriver{} }

type uncountedDriver struct{}

func (uncountedDriver) Open(string) (driver.Conn, error) { return uncountedConn{}, nil }

type uncountedConn struct{}

func (uncountedConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("dbtest: reads unsupported") }
func (uncountedConn) Close() error                        { return nil }
func (uncountedConn) Begin() (driver.Tx, error)           { return nil, errors.New("dbtest: no transactions") }

func (uncountedConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return uncountedResult{}, nil
}

type uncountedResult struct{}

func (uncountedResult) LastInsertId() (int64, error) { return 0, ErrRowsAffected }
func (uncountedResult) RowsAffected() (int64, error) { return 0, ErrRowsAffected }

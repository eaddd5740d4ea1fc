package pool

import (
	"context"
	"database/sql"
	"tix/src/db"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Conn is one pooled database connection, exclusively owned by at most one
// lease at a time.
type Conn interface {
	Query(query string, args ...any) (*sql.Rows, error)
	DB() *gorm.DB
	Close() error
}

// Factory opens a new underlying connection.
type Factory func() (Conn, error)

type dbConn struct {
	inner *sql.Conn
	orm   *gorm.DB
}

func (c *dbConn) Query(query string, args ...any) (*sql.Rows, error) {
	return c.inner.QueryContext(context.Background(), query, args...)
}

func (c *dbConn) DB() *gorm.DB {
	return c.orm
}

func (c *dbConn) Close() error {
	return c.inner.Close()
}

// NewDBConn pins one dedicated connection out of sqlDB and wraps it with a
// gorm session bound to that connection. Everything issued through the
// session runs on the pinned connection, never the shared handle.
func NewDBConn(sqlDB *sql.DB) (Conn, error) {
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		return nil, err
	}
	orm, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &dbConn{inner: conn, orm: orm}, nil
}

// DatabaseFactory checks a dedicated connection out of the shared gorm
// handle. The *sql.Conn is pinned until Close, which is what gives a lease
// exclusive ownership.
func DatabaseFactory() (Conn, error) {
	gdb := db.GetDb()
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	return NewDBConn(sqlDB)
}

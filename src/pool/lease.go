package pool

import (
	"database/sql"
	"sync/atomic"
	"tix/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lease is a temporary, exclusive handle on one pooled connection. The
// released flag flips one way; every query checks it first so that
// use-after-release surfaces as ErrLeaseReleased instead of a data race on
// a connection someone else now owns.
type Lease struct {
	ID          uuid.UUID `json:"id"`
	OperationID string    `json:"operation_id"`

	conn     Conn
	pool     *Pool
	released atomic.Bool
}

// Execute runs a query on the leased connection. Callers that hold on to a
// lease past Release get ErrLeaseReleased, never another caller's
// connection.
func (l *Lease) Execute(query string, args ...any) (*sql.Rows, error) {
	if l.released.Load() {
		return nil, types.ErrLeaseReleased
	}
	return l.conn.Query(query, args...)
}

// DB returns a gorm handle bound to the leased connection. The handle is
// valid until Release; queries issued through it run on the pinned
// connection that this lease owns.
func (l *Lease) DB() *gorm.DB {
	return l.conn.DB()
}

// Release returns the connection to the pool. Releasing twice is a no-op.
func (l *Lease) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	l.pool.release(l)
}

func (l *Lease) IsReleased() bool {
	return l.released.Load()
}

// forceRelease marks the lease released without returning the connection;
// the pool closes it directly during shutdown.
func (l *Lease) forceRelease() {
	l.released.Store(true)
}

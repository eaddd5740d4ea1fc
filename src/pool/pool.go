package pool

import (
	"fmt"
	"log"
	"sync"
	"time"
	"tix/src/config"
	"tix/src/types"

	"github.com/google/uuid"
)

// A pool is considered unhealthy once this many connection-creation errors
// accumulate inside the health window.
const (
	UnhealthyCreationErrors = 10
	healthWindow            = 5 * time.Minute
)

type Config struct {
	MaxConnections int
	AcquireTimeout time.Duration
	Factory        Factory
}

type Statistics struct {
	State              types.PoolState `json:"state"`
	TotalConnections   int             `json:"total_connections"`
	IdleConnections    int             `json:"idle_connections"`
	ActiveLeases       int             `json:"active_leases"`
	MaxConnections     int             `json:"max_connections"`
	ConnectionsCreated uint64          `json:"connections_created"`
	CreationErrors     uint64          `json:"creation_errors"`
	LeasesGranted      uint64          `json:"leases_granted"`
}

type HealthStatus struct {
	Status       string          `json:"status"`
	State        types.PoolState `json:"state"`
	PoolSize     int             `json:"pool_size"`
	ActiveLeases int             `json:"active_leases"`
	RecentErrors int             `json:"recent_errors"`
}

// Pool owns a bounded set of connections and hands them out one lease at a
// time. Invariant: activeLeases <= totalConnections <= MaxConnections.
type Pool struct {
	cfg Config

	mu     sync.Mutex
	state  types.PoolState
	total  int
	active map[uuid.UUID]*Lease

	idle    chan Conn
	done    chan struct{}
	drained chan struct{}

	connectionsCreated uint64
	leasesGranted      uint64
	creationErrors     uint64
	recentErrors       []time.Time
}

func New(cfg Config) *Pool {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = config.DEFAULT_POOL_MAX_CONNECTIONS
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = config.DEFAULT_POOL_ACQUIRE_TIMEOUT
	}
	if cfg.Factory == nil {
		cfg.Factory = DatabaseFactory
	}
	return &Pool{
		cfg:    cfg,
		state:  types.POOL_IDLE,
		active: make(map[uuid.UUID]*Lease),
		idle:   make(chan Conn, cfg.MaxConnections),
		done:   make(chan struct{}),
	}
}

// AcquireLease binds an idle connection to a new lease, creating a
// connection when the pool has headroom, otherwise blocking up to
// AcquireTimeout for one to be released.
func (p *Pool) AcquireLease(operationID string) (*Lease, error) {
	p.mu.Lock()
	if p.state == types.POOL_SHUTTING_DOWN || p.state == types.POOL_SHUTDOWN {
		p.mu.Unlock()
		return nil, types.ErrPoolShuttingDown
	}
	if p.state == types.POOL_IDLE {
		p.state = types.POOL_ACTIVE
	}

	select {
	case conn := <-p.idle:
		lease := p.grantLocked(conn, operationID)
		p.mu.Unlock()
		return lease, nil
	default:
	}

	if p.total < p.cfg.MaxConnections {
		p.total++
		p.mu.Unlock()
		conn, err := p.cfg.Factory()
		p.mu.Lock()
		if err != nil {
			p.total--
			p.creationErrors++
			p.recentErrors = append(p.recentErrors, time.Now())
			p.mu.Unlock()
			log.Printf("[pool] Error creating connection for %s: %s\n", operationID, err.Error())
			return nil, fmt.Errorf("%w: %s", types.ErrConnectionCreation, err.Error())
		}
		p.connectionsCreated++
		lease := p.grantLocked(conn, operationID)
		p.mu.Unlock()
		return lease, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case conn := <-p.idle:
		p.mu.Lock()
		if p.state == types.POOL_SHUTTING_DOWN || p.state == types.POOL_SHUTDOWN {
			p.total--
			p.mu.Unlock()
			conn.Close()
			return nil, types.ErrPoolShuttingDown
		}
		lease := p.grantLocked(conn, operationID)
		p.mu.Unlock()
		return lease, nil
	case <-p.done:
		return nil, types.ErrPoolShuttingDown
	case <-timer.C:
		return nil, types.ErrPoolExhausted
	}
}

func (p *Pool) grantLocked(conn Conn, operationID string) *Lease {
	lease := &Lease{
		ID:          uuid.New(),
		OperationID: operationID,
		conn:        conn,
		pool:        p,
	}
	p.active[lease.ID] = lease
	p.leasesGranted++
	return lease
}

// ReleaseLease releases the active lease with the given id. Unknown or
// already-released ids are a no-op.
func (p *Pool) ReleaseLease(id uuid.UUID) {
	p.mu.Lock()
	lease, ok := p.active[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	lease.Release()
}

func (p *Pool) release(l *Lease) {
	p.mu.Lock()
	if _, ok := p.active[l.ID]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, l.ID)
	if p.state == types.POOL_SHUTTING_DOWN || p.state == types.POOL_SHUTDOWN {
		p.total--
		if len(p.active) == 0 && p.drained != nil {
			close(p.drained)
			p.drained = nil
		}
		p.mu.Unlock()
		l.conn.Close()
		return
	}
	// The send happens under the lock: idle is sized to MaxConnections so
	// it never blocks, and holding the lock means the conn cannot land in
	// the channel after shutdown's drain loop already emptied it.
	p.idle <- l.conn
	p.mu.Unlock()
}

// GracefulShutdown stops granting leases, waits up to timeout for active
// leases to drain, then closes every connection. It returns true when all
// leases were released in time and false when connections had to be
// force-closed while still leased.
func (p *Pool) GracefulShutdown(timeout time.Duration) bool {
	p.mu.Lock()
	if p.state == types.POOL_SHUTDOWN {
		p.mu.Unlock()
		return true
	}
	alreadyStopping := p.state == types.POOL_SHUTTING_DOWN
	p.state = types.POOL_SHUTTING_DOWN
	if !alreadyStopping {
		close(p.done)
	}
	clean := true
	if len(p.active) > 0 {
		if p.drained == nil {
			p.drained = make(chan struct{})
		}
		drained := p.drained
		p.mu.Unlock()

		select {
		case <-drained:
		case <-time.After(timeout):
			clean = false
		}
		p.mu.Lock()
	}

	for _, lease := range p.active {
		lease.forceRelease()
		lease.conn.Close()
		delete(p.active, lease.ID)
		p.total--
	}
	for {
		select {
		case conn := <-p.idle:
			conn.Close()
			p.total--
			continue
		default:
		}
		break
	}
	p.state = types.POOL_SHUTDOWN
	p.mu.Unlock()
	if !clean {
		log.Printf("[pool] Shutdown timed out after %s; connections force-closed while leased\n", timeout)
	}
	return clean
}

// GetHealthStatus reports unhealthy once creation errors inside the health
// window pass the threshold. Diagnostics only; nothing gates on it.
func (p *Pool) GetHealthStatus() HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-healthWindow)
	recent := p.recentErrors[:0]
	for _, ts := range p.recentErrors {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	p.recentErrors = recent

	status := "healthy"
	if len(recent) >= UnhealthyCreationErrors {
		status = "unhealthy"
	}
	return HealthStatus{
		Status:       status,
		State:        p.state,
		PoolSize:     p.total,
		ActiveLeases: len(p.active),
		RecentErrors: len(recent),
	}
}

// GetPoolStatistics returns a point-in-time snapshot of the pool and its
// cumulative counters. Never used for control decisions.
func (p *Pool) GetPoolStatistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Statistics{
		State:              p.state,
		TotalConnections:   p.total,
		IdleConnections:    len(p.idle),
		ActiveLeases:       len(p.active),
		MaxConnections:     p.cfg.MaxConnections,
		ConnectionsCreated: p.connectionsCreated,
		CreationErrors:     p.creationErrors,
		LeasesGranted:      p.leasesGranted,
	}
}

var pool *Pool

// GetPool lazily constructs the one pool this process uses.
func GetPool() *Pool {
	if pool != nil {
		return pool
	}
	pool = New(Config{
		MaxConnections: config.GetPoolMaxConnections(),
		AcquireTimeout: config.GetPoolAcquireTimeout(),
	})
	return pool
}

// NewPool Replace pool instance with custom implementation
func NewPool(p *Pool) *Pool {
	pool = p
	return pool
}

// ResetPool drops the singleton so tests can start from a fresh pool.
func ResetPool() {
	pool = nil
}

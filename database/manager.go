package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/atomic"
	_ "modernc.org/sqlite"
)

// State is the lifecycle of a Manager.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Manager owns a lazily initialized connection pool and hands out units of
// work over it. The pool is built on the first Acquire; concurrent first
// callers wait for that single initialization. Close is terminal: construct
// a new Manager to reconnect.
type Manager struct {
	opts   Options
	logger logging.Logger

	state  atomic.Int32
	initMu sync.Mutex

	mu       sync.RWMutex
	db       *sql.DB
	target   target
	poolType string
}

// NewManager returns an uninitialized Manager. Options are checked on the
// first Acquire, where problems surface as KindConfiguration errors.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Open == nil {
		opts.Open = sql.Open
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger,
		target: target{safe: maskURL(opts.URL)},
	}
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

// Dialect is known once the Manager is ready.
func (m *Manager) Dialect() Dialect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target.dialect
}

// Stats reports pool occupancy; zero before initialization and after Close.
func (m *Manager) Stats() sql.DBStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return sql.DBStats{}
	}
	return m.db.Stats()
}

// pool returns the ready pool, initializing it on first use.
func (m *Manager) pool(ctx context.Context) (*sql.DB, error) {
	const op errors.Op = "database.Manager.pool"

	if m.State() == StateReady {
		m.mu.RLock()
		db := m.db
		m.mu.RUnlock()
		if db != nil {
			return db, nil
		}
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()

	switch m.State() {
	case StateReady:
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.db, nil
	case StateClosed:
		return nil, newError(KindConnectivity, op, ErrClosed)
	}

	m.state.Store(int32(StateInitializing))
	db, t, poolType, err := m.initialize(ctx)
	if err != nil {
		m.state.Store(int32(StateUninitialized))
		return nil, err
	}

	m.mu.Lock()
	m.db, m.target, m.poolType = db, t, poolType
	m.mu.Unlock()
	m.state.Store(int32(StateReady))
	return db, nil
}

// initialize builds and probes a pool. On failure nothing is left open.
func (m *Manager) initialize(ctx context.Context) (*sql.DB, target, string, error) {
	const op errors.Op = "database.Manager.initialize"

	if err := m.opts.validate(); err != nil {
		return nil, target{}, "", err
	}
	t, err := parseTarget(m.opts.URL, m.opts.AppName)
	if err != nil {
		return nil, target{}, "", err
	}

	db, err := m.opts.Open(t.driver, t.dsn)
	if err != nil {
		return nil, target{}, "", wrap(KindConnectivity, op, err, "Failed to create connection pool.")
	}
	poolType := tunePool(db, t.dialect, m.opts)

	if err := m.probe(ctx, db); err != nil {
		_ = db.Close()
		m.logger.ErrorWith().Ctx(ctx).Err(err).
			Str("database_url", t.safe).
			Int("attempts", m.opts.RetryAttempts).
			Msg("Database initialization failed")
		return nil, target{}, "", wrap(KindConnectivity, op, err, "Failed to connect to database.")
	}

	m.logger.InfoWith().Ctx(ctx).
		Str("dialect", string(t.dialect)).
		Str("database_url", t.safe).
		Str("pool_type", poolType).
		Int("pool_size", m.opts.PoolSize).
		Msg("Database initialized")
	return db, t, poolType, nil
}

// probe runs the round-trip query up to RetryAttempts times with a fixed
// delay between attempts.
func (m *Manager) probe(ctx context.Context, db *sql.DB) error {
	var lastErr error
	for attempt := 1; attempt <= m.opts.RetryAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		var one int
		lastErr = db.QueryRowContext(pctx, probeQuery).Scan(&one)
		cancel()
		if lastErr == nil {
			return nil
		}

		m.logger.WarnWith().Ctx(ctx).Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", m.opts.RetryAttempts).
			Msg("Database connection attempt failed")

		if attempt < m.opts.RetryAttempts {
			if err := m.opts.Sleep(ctx, m.opts.RetryDelay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Acquire returns a new unit of work holding one pooled connection and an
// open transaction. Waiting for a free connection is bounded by
// PoolTimeout. The caller must Close the session; WithSession does that.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	const op errors.Op = "database.Manager.Acquire"

	db, err := m.pool(ctx)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, m.opts.PoolTimeout)
	conn, err := db.Conn(wctx)
	cancel()
	if err != nil {
		return nil, wrap(KindConnectivity, op, err, "Timed out waiting for a pooled connection.")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, wrap(KindTransaction, op, err, "Failed to begin transaction.")
	}

	return &Session{
		conn:    conn,
		tx:      tx,
		dialect: m.Dialect(),
		echo:    m.opts.Echo,
		logger:  m.logger,
	}, nil
}

// WithSession runs fn in a unit of work. The transaction is committed when
// fn returns nil and rolled back when it returns an error or panics; the
// panic is re-raised. The connection goes back to the pool in every case.
// fn's error is returned unchanged.
func (m *Manager) WithSession(ctx context.Context, fn func(*Session) error) (err error) {
	s, err := m.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = s.Close()
			m.logger.ErrorWith().Ctx(ctx).
				Interface("panic", r).
				Msg("Database session rolled back after panic")
			panic(r)
		}
	}()

	if ferr := fn(s); ferr != nil {
		if rerr := s.Close(); rerr != nil {
			m.logger.WarnWith().Ctx(ctx).Err(rerr).Msg("Database session rollback failed")
		}
		m.logger.DebugWith().Ctx(ctx).Err(ferr).Msg("Database session rolled back")
		return ferr
	}

	if cerr := s.Commit(); cerr != nil {
		_ = s.Close()
		return cerr
	}
	return s.Close()
}

// Close disposes the pool. It waits for an initialization in progress and
// is safe to call more than once.
func (m *Manager) Close() error {
	const op errors.Op = "database.Manager.Close"

	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.State() == StateClosed {
		return nil
	}

	m.mu.Lock()
	db := m.db
	m.db = nil
	m.mu.Unlock()
	m.state.Store(int32(StateClosed))

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return wrap(KindConnectivity, op, err, "Failed to close connection pool.")
	}
	m.logger.InfoWith().Str("database_url", m.target.safe).Msg("Database connections closed")
	return nil
}

// HealthCheck runs one round trip and reports the outcome. It never fails:
// problems are reported as an unhealthy status with a reason.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	m.mu.RLock()
	db, t, poolType := m.db, m.target, m.poolType
	m.mu.RUnlock()

	h := Health{Status: StatusUnhealthy, DatabaseURL: t.safe}
	if db == nil || m.State() != StateReady {
		h.Error = "database not initialized"
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	var one int
	err := db.QueryRowContext(ctx, probeQuery).Scan(&one)
	h.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000

	stats := db.Stats()
	h.Pool = PoolStatus{
		Type:      poolType,
		MaxOpen:   stats.MaxOpenConnections,
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
	}

	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Status = StatusHealthy
	return h
}

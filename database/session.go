package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/logging"
)

// Session is one unit of work: a pinned connection with an open
// transaction. It belongs to a single goroutine. Queries use '?'
// placeholders, which are rebound for the session's dialect.
type Session struct {
	conn    *sql.Conn
	tx      *sql.Tx
	dialect Dialect
	echo    bool
	logger  logging.Logger

	finished bool
	closed   bool
}

func (s *Session) Dialect() Dialect { return s.dialect }

// Rebind rewrites '?' placeholders to the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (s *Session) Rebind(query string) string {
	return rebind(s.dialect, query)
}

func rebind(d Dialect, query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n, quoted := 0, false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (s *Session) prepare(ctx context.Context, query string) (string, error) {
	const op errors.Op = "database.Session.prepare"
	if s.closed || s.finished {
		return "", newError(KindTransaction, op, sql.ErrTxDone)
	}
	q := s.Rebind(query)
	if s.echo {
		s.logger.DebugWith().Ctx(ctx).Str("sql", q).Msg("Executing statement")
	}
	return q, nil
}

func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	const op errors.Op = "database.Session.ExecContext"
	q, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := s.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, newError(KindTransaction, op, err)
	}
	return res, nil
}

// QueryContext runs a query; the caller closes the rows before the session
// is committed or closed.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	const op errors.Op = "database.Session.QueryContext"
	q, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := s.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newError(KindTransaction, op, err)
	}
	return rows, nil
}

// QueryRowContext runs a query expected to return at most one row. Errors
// are deferred to Scan, as with database/sql; on a finished session the
// underlying transaction reports sql.ErrTxDone.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	q := s.Rebind(query)
	if s.echo {
		s.logger.DebugWith().Ctx(ctx).Str("sql", q).Msg("Executing statement")
	}
	return s.tx.QueryRowContext(ctx, q, args...)
}

func (s *Session) Commit() error {
	const op errors.Op = "database.Session.Commit"
	if s.finished {
		return newError(KindTransaction, op, sql.ErrTxDone)
	}
	s.finished = true
	if err := s.tx.Commit(); err != nil {
		return newError(KindTransaction, op, err)
	}
	return nil
}

func (s *Session) Rollback() error {
	const op errors.Op = "database.Session.Rollback"
	if s.finished {
		return nil
	}
	s.finished = true
	if err := s.tx.Rollback(); err != nil {
		return newError(KindTransaction, op, err)
	}
	return nil
}

// Close rolls back a transaction that was neither committed nor rolled
// back, then returns the connection to the pool. It is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	rerr := s.Rollback()
	s.closed = true
	if err := s.conn.Close(); err != nil && rerr == nil {
		return newError(KindConnectivity, "database.Session.Close", err)
	}
	return rerr
}

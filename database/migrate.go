package database

import (
	"context"
	"database/sql"
	stderrs "errors"
	"fmt"
	"strings"
	"time"

	"github.com/Station-Manager/errors"
)

const migrationTable = "schema_migrations"

// Migration is one named schema step with a statement per dialect.
type Migration struct {
	Name string
	SQL  map[Dialect]string
}

// Migrate applies each migration at most once, in order, each in its own
// unit of work. Applied names are recorded in schema_migrations.
func (m *Manager) Migrate(ctx context.Context, migrations []Migration) error {
	const op errors.Op = "database.Manager.Migrate"

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`, migrationTable)
	if err := m.WithSession(ctx, func(s *Session) error {
		_, err := s.ExecContext(ctx, create)
		return err
	}); err != nil {
		return err
	}

	for _, mig := range migrations {
		applied := false
		err := m.WithSession(ctx, func(s *Session) error {
			stmt, ok := mig.SQL[s.Dialect()]
			if !ok || strings.TrimSpace(stmt) == "" {
				return wrap(KindConfiguration, op, nil, fmt.Sprintf("Migration %s has no statement for %s.", mig.Name, s.Dialect()))
			}

			var found int
			err := s.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", mig.Name).Scan(&found)
			switch {
			case err == nil:
				return nil
			case !stderrs.Is(err, sql.ErrNoRows):
				return newError(KindTransaction, op, err)
			}

			if _, err := s.ExecContext(ctx, stmt); err != nil {
				return err
			}
			if _, err := s.ExecContext(ctx,
				"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
				mig.Name, time.Now().UTC().UnixMilli(),
			); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			return err
		}
		if applied {
			m.logger.InfoWith().Ctx(ctx).Str("migration", mig.Name).Msg("Migration applied")
		}
	}
	return nil
}

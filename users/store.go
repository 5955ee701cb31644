package users

import (
	"context"
	"database/sql"
	stderrs "errors"
	"strings"
	"time"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/database"
)

// ErrNotFound is returned by lookups that match no account.
var ErrNotFound = stderrs.New("user not found")

const (
	defaultListLimit   = 100
	defaultSearchLimit = 50
)

const userColumns = `id, email, username, first_name, last_name, password_hash,
    is_active, is_verified, role, phone_number, bio, profile_picture_url,
    created_at, updated_at, last_login, deleted_at`

// Migrations creates the users table. Times are stored as Unix milliseconds
// so both dialects scan them the same way.
func Migrations() []database.Migration {
	return []database.Migration{{
		Name: "0001_users",
		SQL: map[database.Dialect]string{
			database.DialectSQLite: `CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    username TEXT UNIQUE,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    is_verified BOOLEAN NOT NULL DEFAULT 0,
    role TEXT NOT NULL DEFAULT 'user',
    phone_number TEXT NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    profile_picture_url TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    last_login BIGINT,
    deleted_at BIGINT
)`,
			database.DialectPostgres: `CREATE TABLE users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    username VARCHAR(50) UNIQUE,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    phone_number VARCHAR(20) NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    profile_picture_url VARCHAR(500) NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    last_login BIGINT,
    deleted_at BIGINT
)`,
		},
	}}
}

// Store reads and writes accounts inside a caller supplied unit of work.
type Store struct {
	// Now stamps created_at, updated_at and last_login. Defaults to time.Now.
	Now func() time.Time
}

func (st Store) now() time.Time {
	if st.Now != nil {
		return st.Now().UTC()
	}
	return time.Now().UTC()
}

// Create inserts u and fills in its ID and timestamps.
func (st Store) Create(ctx context.Context, s *database.Session, u *User) error {
	const op errors.Op = "users.Store.Create"
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !u.Role.Valid() {
		return errors.New(op).Msg("Invalid role: " + string(u.Role))
	}
	now := st.now()
	u.CreatedAt, u.UpdatedAt = now, now

	err := s.QueryRowContext(ctx, `INSERT INTO users (
    email, username, first_name, last_name, password_hash, is_active, is_verified,
    role, phone_number, bio, profile_picture_url, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		u.Email, nullString(u.Username), u.FirstName, u.LastName, u.PasswordHash,
		u.IsActive, u.IsVerified, string(u.Role), u.PhoneNumber, u.Bio, u.ProfilePictureURL,
		now.UnixMilli(), now.UnixMilli(),
	).Scan(&u.ID)
	if err != nil {
		return errors.New(op).Err(err).Msg("Failed to insert user.")
	}
	return nil
}

func (st Store) GetByID(ctx context.Context, s *database.Session, id int64) (*User, error) {
	return st.getOne(ctx, s, "id", id)
}

// GetByEmail matches case-insensitively.
func (st Store) GetByEmail(ctx context.Context, s *database.Session, email string) (*User, error) {
	return st.getOne(ctx, s, "LOWER(email)", strings.ToLower(email))
}

func (st Store) GetByUsername(ctx context.Context, s *database.Session, username string) (*User, error) {
	return st.getOne(ctx, s, "username", username)
}

func (st Store) getOne(ctx context.Context, s *database.Session, column string, value any) (*User, error) {
	const op errors.Op = "users.Store.getOne"
	row := s.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+" = ? AND deleted_at IS NULL", value)
	u, err := scanUser(row)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.New(op).Err(err).Msg("Failed to load user.")
	}
	return u, nil
}

// ListActive pages through active accounts ordered by id.
func (st Store) ListActive(ctx context.Context, s *database.Session, skip, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return st.list(ctx, s,
		"SELECT "+userColumns+" FROM users WHERE is_active = ? AND deleted_at IS NULL ORDER BY id LIMIT ? OFFSET ?",
		true, limit, max(skip, 0))
}

func (st Store) ListByRole(ctx context.Context, s *database.Session, role Role) ([]*User, error) {
	return st.list(ctx, s,
		"SELECT "+userColumns+" FROM users WHERE role = ? AND deleted_at IS NULL ORDER BY id",
		string(role))
}

// Search matches term against names, email and username, ignoring case.
func (st Store) Search(ctx context.Context, s *database.Session, term string, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + strings.ToLower(term) + "%"
	return st.list(ctx, s, `SELECT `+userColumns+` FROM users
WHERE deleted_at IS NULL AND (
    LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?
    OR LOWER(email) LIKE ? OR LOWER(COALESCE(username, '')) LIKE ?
) ORDER BY id LIMIT ?`,
		pattern, pattern, pattern, pattern, limit)
}

func (st Store) list(ctx context.Context, s *database.Session, query string, args ...any) ([]*User, error) {
	const op errors.Op = "users.Store.list"
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(op).Err(err).Msg("Failed to list users.")
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.New(op).Err(err).Msg("Failed to scan user.")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(op).Err(err).Msg("Failed to list users.")
	}
	return out, nil
}

// SetActive activates or deactivates an account.
func (st Store) SetActive(ctx context.Context, s *database.Session, id int64, active bool) error {
	return st.update(ctx, s, "users.Store.SetActive",
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		active, st.now().UnixMilli(), id)
}

func (st Store) UpdateLastLogin(ctx context.Context, s *database.Session, id int64) error {
	now := st.now().UnixMilli()
	return st.update(ctx, s, "users.Store.UpdateLastLogin",
		"UPDATE users SET last_login = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
}

// SoftDelete hides the account from every lookup.
func (st Store) SoftDelete(ctx context.Context, s *database.Session, id int64) error {
	now := st.now().UnixMilli()
	return st.update(ctx, s, "users.Store.SoftDelete",
		"UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
}

func (st Store) update(ctx context.Context, s *database.Session, op errors.Op, query string, args ...any) error {
	res, err := s.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.New(op).Err(err).Msg("Failed to update user.")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.New(op).Err(err).Msg("Failed to update user.")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of accounts that are not deleted.
func (st Store) Count(ctx context.Context, s *database.Session) (int64, error) {
	const op errors.Op = "users.Store.Count"
	var n int64
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE deleted_at IS NULL").Scan(&n); err != nil {
		return 0, errors.New(op).Err(err).Msg("Failed to count users.")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (*User, error) {
	var (
		u                    User
		username             sql.NullString
		role                 string
		created, updated     int64
		lastLogin, deletedAt sql.NullInt64
	)
	err := sc.Scan(
		&u.ID, &u.Email, &username, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsActive, &u.IsVerified, &role, &u.PhoneNumber, &u.Bio, &u.ProfilePictureURL,
		&created, &updated, &lastLogin, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.Role = Role(role)
	u.CreatedAt = time.UnixMilli(created).UTC()
	u.UpdatedAt = time.UnixMilli(updated).UTC()
	u.LastLogin = millisPtr(lastLogin)
	u.DeletedAt = millisPtr(deletedAt)
	return &u, nil
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

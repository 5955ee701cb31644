package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/authforge/authcore/config"
	"github.com/authforge/authcore/database"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newManager(t *testing.T) *database.Manager {
	t.Helper()
	m := database.NewManager(database.Options{
		URL:           "sqlite:///" + filepath.Join(t.TempDir(), "users.db"),
		PoolSize:      5,
		PoolTimeout:   5 * time.Second,
		RetryAttempts: 1,
	})
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Migrate(context.Background(), Migrations()))
	return m
}

func newTestService(t *testing.T) (*Service, *database.Manager) {
	t.Helper()
	m := newManager(t)
	tokens, err := NewTokens(config.Defaults())
	require.NoError(t, err)
	return NewService(m, tokens, nil, bcrypt.MinCost), m
}

func alice() NewUser {
	return NewUser{
		Email:     "Alice@Example.com",
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Password:  "correct horse",
	}
}

func TestRoleHierarchy(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		want     bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleModerator, true},
		{RoleAdmin, RoleUser, true},
		{RoleModerator, RoleAdmin, false},
		{RoleModerator, RoleModerator, true},
		{RoleModerator, RoleUser, true},
		{RoleUser, RoleModerator, false},
		{RoleUser, RoleUser, true},
		{Role("ghost"), RoleUser, false},
	}
	for _, tt := range tests {
		u := &User{Role: tt.role}
		assert.Equal(t, tt.want, u.HasPermission(tt.required), "%s needs %s", tt.role, tt.required)
	}

	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestUserNames(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: RoleAdmin}
	assert.Equal(t, "Ada Lovelace", u.FullName())
	assert.Equal(t, "Ada Lovelace (ada@example.com)", u.String())
	assert.True(t, u.IsAdmin())
	assert.False(t, u.IsModerator())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret-pass"))
}

func TestStore(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := Store{Now: func() time.Time { return fixed }}

	require.NoError(t, m.WithSession(ctx, func(s *database.Session) error {
		for _, u := range []*User{
			{Email: "a@example.com", Username: "ann", FirstName: "Ann", LastName: "Archer", PasswordHash: "x", IsActive: true, Role: RoleAdmin},
			{Email: "b@example.com", FirstName: "Bob", LastName: "Baker", PasswordHash: "x", IsActive: true},
			{Email: "c@example.com", FirstName: "Cara", LastName: "Cole", PasswordHash: "x", IsActive: false},
		} {
			if err := st.Create(ctx, s, u); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, m.WithSession(ctx, func(s *database.Session) error {
		u, err := st.GetByEmail(ctx, s, "A@EXAMPLE.COM")
		require.NoError(t, err)
		assert.Equal(t, "ann", u.Username)
		assert.Equal(t, RoleAdmin, u.Role)
		assert.Equal(t, fixed, u.CreatedAt)
		assert.Nil(t, u.LastLogin)

		bob, err := st.GetByID(ctx, s, 2)
		require.NoError(t, err)
		assert.Equal(t, RoleUser, bob.Role, "role defaults to user")
		assert.Empty(t, bob.Username)

		_, err = st.GetByUsername(ctx, s, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)

		active, err := st.ListActive(ctx, s, 0, 0)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		page, err := st.ListActive(ctx, s, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "b@example.com", page[0].Email)

		found, err := st.Search(ctx, s, "BAK", 0)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Bob", found[0].FirstName)

		admins, err := st.ListByRole(ctx, s, RoleAdmin)
		require.NoError(t, err)
		assert.Len(t, admins, 1)

		require.NoError(t, st.SetActive(ctx, s, 3, true))
		require.NoError(t, st.UpdateLastLogin(ctx, s, 1))
		assert.ErrorIs(t, st.SetActive(ctx, s, 99, true), ErrNotFound)

		require.NoError(t, st.SoftDelete(ctx, s, 2))
		_, err = st.GetByID(ctx, s, 2)
		assert.ErrorIs(t, err, ErrNotFound)

		n, err := st.Count(ctx, s)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		return nil
	}))

	require.NoError(t, m.WithSession(ctx, func(s *database.Session) error {
		u, err := st.GetByID(ctx, s, 1)
		require.NoError(t, err)
		require.NotNil(t, u.LastLogin)
		assert.Equal(t, fixed, *u.LastLogin)

		c, err := st.GetByID(ctx, s, 3)
		require.NoError(t, err)
		assert.True(t, c.IsActive)
		return nil
	}))
}

func TestStore_CreateRejectsUnknownRole(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	err := m.WithSession(ctx, func(s *database.Session) error {
		return Store{}.Create(ctx, s, &User{Email: "x@example.com", FirstName: "X", LastName: "Y", PasswordHash: "x", Role: "root"})
	})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, alice())
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.Equal(t, RoleUser, u.Role)
	assert.True(t, CheckPassword(u.PasswordHash, "correct horse"))

	_, err = svc.Register(ctx, alice())
	assert.ErrorIs(t, err, ErrEmailTaken)

	dup := alice()
	dup.Email = "other@example.com"
	_, err = svc.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	bad := alice()
	bad.Email = "not-an-email"
	_, err = svc.Register(ctx, bad)
	assert.Error(t, err)

	short := alice()
	short.Email, short.Username, short.Password = "s@example.com", "", "short"
	_, err = svc.Register(ctx, short)
	assert.Error(t, err)

	var n int64
	require.NoError(t, m.WithSession(ctx, func(s *database.Session) error {
		var err error
		n, err = svc.Store().Count(ctx, s)
		return err
	}))
	assert.EqualValues(t, 1, n, "failed registrations leave nothing behind")
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, alice())
	require.NoError(t, err)

	u, pair, err := svc.Authenticate(ctx, " ALICE@example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.tokens.Parse(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, RoleUser, claims.Role)

	_, _, err = svc.Authenticate(ctx, "alice@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "an access token is not a refresh token")
}

func TestAuthenticate_Inactive(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, alice())
	require.NoError(t, err)

	require.NoError(t, m.WithSession(ctx, func(s *database.Session) error {
		return svc.Store().SetActive(ctx, s, u.ID, false)
	}))
	_, _, err = svc.Authenticate(ctx, "alice@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestTokens(t *testing.T) {
	s := config.FromEnvironment(map[string]string{"JWT_SECRET_KEY": "k1", "APP_NAME": "authcore"})
	tokens, err := NewTokens(s)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }
	u := &User{ID: 7, Email: "t@example.com", Role: RoleModerator}

	pair, err := tokens.Issue(u)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), pair.ExpiresAt)

	claims, err := tokens.Parse(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "authcore", claims.Issuer)
	assert.Equal(t, TokenAccess, claims.Type)

	t.Run("expired", func(t *testing.T) {
		later := *tokens
		later.now = func() time.Time { return now.Add(time.Hour) }
		_, err := later.Parse(pair.AccessToken, TokenAccess)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)

		_, err = later.Parse(pair.RefreshToken, TokenRefresh)
		assert.NoError(t, err, "refresh tokens live for days")
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokens(config.FromEnvironment(map[string]string{"JWT_SECRET_KEY": "k2", "APP_NAME": "authcore"}))
		require.NoError(t, err)
		other.now = tokens.now
		_, err = other.Parse(pair.AccessToken, TokenAccess)
		assert.Error(t, err)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := NewTokens(config.FromEnvironment(map[string]string{"JWT_ALGORITHM": "RS256"}))
		assert.Error(t, err)
	})
}

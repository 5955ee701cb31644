package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Defaults()

	assert.Equal(t, "Auth Service", s.App.Name)
	assert.Equal(t, "development", s.App.Environment)
	assert.Equal(t, 8000, s.Server.Port)
	assert.Equal(t, "sqlite:///./auth.db", s.Database.URL)
	assert.Equal(t, 5, s.Database.PoolSize)
	assert.Equal(t, 3, s.Database.RetryAttempts)
	assert.Equal(t, time.Second, s.Database.RetryDelay)
	assert.Equal(t, "INFO", s.Logging.Level)
	assert.Equal(t, "ERROR", s.Logging.ExceptionLevel)
	assert.Equal(t, "1 day", s.Logging.Rotation)
	assert.Equal(t, 2*time.Second, s.Request.SlowThreshold)
	assert.Empty(t, s.Warnings)
}

func TestFromEnvironmentOverrides(t *testing.T) {
	s := FromEnvironment(map[string]string{
		"DATABASE_URL":       "sqlite:///./test.db",
		"DATABASE_POOL_SIZE": "12",
		"LOG_JSON":           "true",
		"ENVIRONMENT":        "Production",
	})

	assert.Equal(t, "sqlite:///./test.db", s.Database.URL)
	assert.Equal(t, 12, s.Database.PoolSize)
	assert.True(t, s.Logging.JSON)
	assert.True(t, s.IsProduction())
	assert.False(t, s.IsDevelopment())
}

func TestFromEnvironmentInvalidValueFallsBack(t *testing.T) {
	s := FromEnvironment(map[string]string{
		"PORT":               "not-a-port",
		"DATABASE_POOL_SIZE": "7",
		"LOG_COMPRESSION":    "maybe",
	})

	assert.Equal(t, 8000, s.Server.Port, "invalid value keeps its default")
	assert.True(t, s.Logging.Compression)
	assert.Equal(t, 7, s.Database.PoolSize, "valid values still apply")
	require.Len(t, s.Warnings, 2)
	assert.Contains(t, s.Warnings[0]+s.Warnings[1], "PORT")
	assert.Contains(t, s.Warnings[0]+s.Warnings[1], "LOG_COMPRESSION")
}

func TestListAccessors(t *testing.T) {
	s := FromEnvironment(map[string]string{
		"ALLOW_ORIGINS":             " https://a.example , ,https://b.example",
		"TRUSTED_HOSTS":             "localhost",
		"REQUEST_SENSITIVE_HEADERS": "Authorization, X-Api-Key",
	})

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.AllowOriginsList())
	assert.Equal(t, []string{"localhost"}, s.TrustedHostsList())
	assert.Equal(t, []string{"*"}, s.AllowMethodsList())
	assert.Equal(t, []string{"authorization", "x-api-key"}, s.SensitiveHeadersList())
	assert.Equal(t, []string{"/health", "/metrics", "/favicon.ico"}, s.ExcludedPathsList())

	// accessors never touch the backing field
	assert.Equal(t, " https://a.example , ,https://b.example", s.CORS.AllowOrigins)
}

func TestJWTSecretFallback(t *testing.T) {
	s := FromEnvironment(map[string]string{"SECRET_KEY": "primary"})
	assert.Equal(t, "primary", s.JWTSecret())

	s = FromEnvironment(map[string]string{"SECRET_KEY": "primary", "JWT_SECRET_KEY": "jwt"})
	assert.Equal(t, "jwt", s.JWTSecret())

	s = &Settings{}
	assert.Equal(t, fallbackSecret, s.JWTSecret())
}

func TestSMTPFromNameFallback(t *testing.T) {
	s := FromEnvironment(map[string]string{"APP_NAME": "Portal"})
	assert.Equal(t, "Portal", s.SMTPFromName())

	s = FromEnvironment(map[string]string{"SMTP_FROM_NAME": "Support"})
	assert.Equal(t, "Support", s.SMTPFromName())
}

func TestLoadReadsDotenvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("APP_NAME=FromFile\nAPP_VERSION=9.9.9\n"), 0o644))

	t.Setenv("APP_NAME", "FromEnv")
	// godotenv sets variables on the process; make sure the test cleans up.
	t.Setenv("APP_VERSION", "")
	require.NoError(t, os.Unsetenv("APP_VERSION"))

	s := Load(file)
	assert.Equal(t, "FromEnv", s.App.Name)
	assert.Equal(t, "9.9.9", s.App.Version)
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NotNil(t, s)
	for _, w := range s.Warnings {
		assert.NotContains(t, w, "dotenv")
	}
}

func TestKeysCoverNestedSections(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "DATABASE_URL")
	assert.Contains(t, keys, "LOG_EXCEPTION_LEVEL")
	assert.Contains(t, keys, "JWT_SECRET_KEY")
	assert.NotContains(t, keys, "Warnings")
}

func TestSinksExpansion(t *testing.T) {
	s := FromEnvironment(map[string]string{
		"LOG_EXCEPTION_JSON": "true",
		"LOG_CONSOLE":        "false",
	})
	sinks := s.Logging.Sinks()
	require.Len(t, sinks, 4)

	byName := map[SinkName]Sink{}
	for _, sk := range sinks {
		byName[sk.Name] = sk
	}
	assert.False(t, byName[SinkConsole].Enabled)
	assert.Equal(t, FormatJSON, byName[SinkException].Format)
	assert.Equal(t, "ERROR", byName[SinkException].Level)
	assert.Equal(t, FilterRequestOnly, byName[SinkRequest].Filter)
	assert.Equal(t, "30 days", byName[SinkRequest].Retention)
}

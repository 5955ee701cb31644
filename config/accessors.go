package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTesting     = "testing"

	fallbackSecret = "default-secret-key"
)

// SplitList turns a comma separated option into an ordered slice, trimming
// blanks and dropping empty entries.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Settings) AllowOriginsList() []string { return SplitList(s.CORS.AllowOrigins) }
func (s *Settings) AllowMethodsList() []string { return SplitList(s.CORS.AllowMethods) }
func (s *Settings) AllowHeadersList() []string { return SplitList(s.CORS.AllowHeaders) }
func (s *Settings) TrustedHostsList() []string { return SplitList(s.CORS.TrustedHosts) }

// ExcludedPathsList returns the request paths the instrumentation skips.
func (s *Settings) ExcludedPathsList() []string { return SplitList(s.Request.ExcludedPaths) }

// SensitiveHeadersList returns the lower-cased header denylist.
func (s *Settings) SensitiveHeadersList() []string {
	list := SplitList(s.Request.SensitiveHeaders)
	for i := range list {
		list[i] = strings.ToLower(list[i])
	}
	return list
}

// JWTSecret returns JWT_SECRET_KEY, falling back to SECRET_KEY when unset.
func (s *Settings) JWTSecret() string {
	if s.Security.JWTSecretKey != "" {
		return s.Security.JWTSecretKey
	}
	if s.Security.SecretKey != "" {
		return s.Security.SecretKey
	}
	return fallbackSecret
}

// SMTPFromName returns SMTP_FROM_NAME, falling back to APP_NAME.
func (s *Settings) SMTPFromName() string {
	if s.SMTP.FromName != "" {
		return s.SMTP.FromName
	}
	if s.App.Name != "" {
		return s.App.Name
	}
	return "Auth Service"
}

func (s *Settings) AccessTokenTTL() time.Duration {
	return time.Duration(s.Security.JWTAccessTokenExpireMinutes) * time.Minute
}

func (s *Settings) RefreshTokenTTL() time.Duration {
	return time.Duration(s.Security.JWTRefreshTokenExpireDays) * 24 * time.Hour
}

func (s *Settings) IsProduction() bool  { return strings.EqualFold(s.App.Environment, EnvProduction) }
func (s *Settings) IsDevelopment() bool { return strings.EqualFold(s.App.Environment, EnvDevelopment) }
func (s *Settings) IsTesting() bool     { return strings.EqualFold(s.App.Environment, EnvTesting) }

// ServerAddr is the host:port the HTTP server listens on.
func (s *Settings) ServerAddr() string {
	return net.JoinHostPort(s.Server.Host, strconv.Itoa(s.Server.Port))
}

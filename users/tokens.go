package users

import (
	stderrs "errors"
	"strconv"
	"time"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/config"
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"

	tokenLeeway = 30 * time.Second
)

var ErrInvalidToken = stderrs.New("invalid token")

// Claims are carried by both token types.
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Tokens signs and verifies HMAC JWTs.
type Tokens struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokens reads the JWT settings. Only the HMAC family is supported.
func NewTokens(s *config.Settings) (*Tokens, error) {
	const op errors.Op = "users.NewTokens"
	method, ok := jwt.GetSigningMethod(s.Security.JWTAlgorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, errors.New(op).Msg("Unsupported JWT algorithm: " + s.Security.JWTAlgorithm)
	}
	return &Tokens{
		secret:     []byte(s.JWTSecret()),
		method:     method,
		issuer:     s.App.Name,
		accessTTL:  s.AccessTokenTTL(),
		refreshTTL: s.RefreshTokenTTL(),
		now:        time.Now,
	}, nil
}

// Issue signs an access and a refresh token for u.
func (t *Tokens) Issue(u *User) (TokenPair, error) {
	const op errors.Op = "users.Tokens.Issue"
	now := t.now()
	access, err := t.sign(u, TokenAccess, now, t.accessTTL)
	if err != nil {
		return TokenPair{}, errors.New(op).Err(err).Msg("Failed to sign access token.")
	}
	refresh, err := t.sign(u, TokenRefresh, now, t.refreshTTL)
	if err != nil {
		return TokenPair{}, errors.New(op).Err(err).Msg("Failed to sign refresh token.")
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    now.Add(t.accessTTL),
	}, nil
}

func (t *Tokens) sign(u *User, typ string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
}

// Parse verifies tokenString and checks that it is of the wanted type.
func (t *Tokens) Parse(tokenString, wantType string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithLeeway(tokenLeeway),
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package users

import (
	"context"
	stderrs "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/authforge/authcore/database"
	"github.com/authforge/authcore/logging"
	"github.com/go-playground/validator/v10"
)

var (
	ErrEmailTaken         = stderrs.New("email already registered")
	ErrUsernameTaken      = stderrs.New("username already taken")
	ErrInvalidCredentials = stderrs.New("invalid credentials")
	ErrInactive           = stderrs.New("account is inactive")
	ErrInvalidInput       = stderrs.New("invalid registration data")
)

// NewUser is the registration input.
type NewUser struct {
	Email     string `validate:"required,email,max=255"`
	Username  string `validate:"omitempty,min=3,max=50"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Password  string `validate:"required,min=8,max=72"`
	Role      Role
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func (n NewUser) validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if n.Role != "" && !n.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, n.Role)
	}
	return nil
}

// Service runs registration and login, each in one unit of work.
type Service struct {
	db     *database.Manager
	store  Store
	tokens *Tokens
	logger logging.Logger
	cost   int
}

// NewService wires the flow. cost is the bcrypt cost for new passwords.
func NewService(db *database.Manager, tokens *Tokens, logger logging.Logger, cost int) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{db: db, tokens: tokens, logger: logger, cost: cost}
}

// Store exposes the account queries for callers composing their own units
// of work.
func (svc *Service) Store() Store { return svc.store }

// Register creates an active account. Email and username must be unused.
func (svc *Service) Register(ctx context.Context, in NewUser) (*User, error) {
	timer := logging.StartOperation(svc.logger, ctx, "user_registration", nil)
	if err := in.validate(); err != nil {
		return nil, timer.End(err)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	hash, err := HashPassword(in.Password, svc.cost)
	if err != nil {
		return nil, timer.End(err)
	}

	u := &User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     strings.TrimSpace(in.Username),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
		Role:         role,
	}

	err = svc.db.WithSession(ctx, func(s *database.Session) error {
		if _, err := svc.store.GetByEmail(ctx, s, u.Email); err == nil {
			return ErrEmailTaken
		} else if !stderrs.Is(err, ErrNotFound) {
			return err
		}
		if u.Username != "" {
			if _, err := svc.store.GetByUsername(ctx, s, u.Username); err == nil {
				return ErrUsernameTaken
			} else if !stderrs.Is(err, ErrNotFound) {
				return err
			}
		}
		return svc.store.Create(ctx, s, u)
	})
	if err != nil {
		return nil, timer.End(err)
	}

	logging.LogBusinessEvent(svc.logger, ctx, "user_registered", map[string]interface{}{
		"user_id": u.ID,
		"role":    string(u.Role),
	})
	return u, timer.End(nil)
}

// Authenticate checks the credentials, records the login and issues tokens.
// Unknown email and wrong password both report ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, email, password string) (*User, TokenPair, error) {
	timer := logging.StartOperation(svc.logger, ctx, "user_login", nil)
	email = strings.ToLower(strings.TrimSpace(email))

	var u *User
	err := svc.db.WithSession(ctx, func(s *database.Session) error {
		found, err := svc.store.GetByEmail(ctx, s, email)
		if stderrs.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if !CheckPassword(found.PasswordHash, password) {
			return ErrInvalidCredentials
		}
		if !found.IsActive {
			return ErrInactive
		}
		if err := svc.store.UpdateLastLogin(ctx, s, found.ID); err != nil {
			return err
		}
		u, err = svc.store.GetByID(ctx, s, found.ID)
		return err
	})
	if err != nil {
		if stderrs.Is(err, ErrInvalidCredentials) || stderrs.Is(err, ErrInactive) {
			logging.LogSecurityEvent(svc.logger, ctx, "login_failed", "WARNING", map[string]interface{}{
				"email":  email,
				"reason": err.Error(),
			})
		}
		return nil, TokenPair{}, timer.End(err)
	}

	pair, err := svc.tokens.Issue(u)
	if err != nil {
		return nil, TokenPair{}, timer.End(err)
	}

	ctx = logging.WithUserID(ctx, strconv.FormatInt(u.ID, 10))
	logging.LogSecurityEvent(svc.logger, ctx, "login_succeeded", "INFO", nil)
	return u, pair, timer.End(nil)
}

// Refresh exchanges a valid refresh token for a new pair, provided the
// account still exists and is active.
func (svc *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := svc.tokens.Parse(refreshToken, TokenRefresh)
	if err != nil {
		logging.LogSecurityEvent(svc.logger, ctx, "refresh_rejected", "WARNING", nil)
		return TokenPair{}, ErrInvalidToken
	}

	var u *User
	err = svc.db.WithSession(ctx, func(s *database.Session) error {
		var err error
		u, err = svc.store.GetByID(ctx, s, claims.UserID)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}
	if !u.IsActive {
		return TokenPair{}, ErrInactive
	}
	return svc.tokens.Issue(u)
}

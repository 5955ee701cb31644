// Package users is the account store and the authentication flow built on
// the database session manager.
package users

import (
	"fmt"
	"strings"
	"time"
)

// Role orders what an account may do: admin > moderator > user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

func (r Role) level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

func (r Role) Valid() bool { return r.level() > 0 }

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is one account. Username is optional and empty when unset.
type User struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	Username          string     `json:"username,omitempty"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	PasswordHash      string     `json:"-"`
	IsActive          bool       `json:"is_active"`
	IsVerified        bool       `json:"is_verified"`
	Role              Role       `json:"role"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	DeletedAt         *time.Time `json:"-"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u *User) IsModerator() bool { return u.Role == RoleModerator }

// HasPermission reports whether the user's role is at least required.
func (u *User) HasPermission(required Role) bool {
	return u.Role.level() >= required.level()
}

func (u *User) String() string {
	return fmt.Sprintf("%s (%s)", u.FullName(), u.Email)
}

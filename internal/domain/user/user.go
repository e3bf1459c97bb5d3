package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for the user directory.
var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Role is the authorization role of an account.
type Role string

const (
	// RoleUser can place and read their own orders.
	RoleUser Role = "USER"
	// RoleAdmin can list every order and change order status.
	RoleAdmin Role = "ADMIN"
)

// User is a registered account. PasswordHash is a bcrypt hash and is never
// serialized to clients.
type User struct {
	ID           int64
	Email        string
	Name         string
	Phone        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// IsAdmin reports whether the account holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Repository defines persistence operations for users. Create must return
// ErrEmailTaken when the email is already in use.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

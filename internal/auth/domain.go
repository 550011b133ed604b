package auth

import (
	"context"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleWaiter  Role = "waiter"
	RoleCashier Role = "cashier"
)

// Valid reports whether r is one of the four staff roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleWaiter, RoleCashier:
		return true
	}
	return false
}

// CanManage reports whether r may administer the shop (reports, staff, catalog).
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleManager
}

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	FirstName    string     `gorm:"size:150" json:"first_name"`
	LastName     string     `gorm:"size:150" json:"last_name"`
	Email        string     `gorm:"size:254" json:"email"`
	Role         Role       `gorm:"size:20;not null;default:waiter" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"date_joined"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Principal is the authenticated staff member behind a request.
type Principal struct {
	UserID   uint
	Username string
	Role     Role
}

// System acts for command line tooling, which runs with admin rights.
var System = Principal{Username: "system", Role: RoleAdmin}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// CreateUserInput is a new staff account.
type CreateUserInput struct {
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
	Email           string `json:"email" form:"email"`
	Role            Role   `json:"role" form:"role"`
}

// UpdateUserInput edits an account. An empty password keeps the current one.
type UpdateUserInput struct {
	Username        string `json:"username" form:"username"`
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
	Email           string `json:"email" form:"email"`
	Role            Role   `json:"role" form:"role"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// ListInput searches users by username, email or name.
type ListInput struct {
	Search string
	Page   int
	Limit  int
}

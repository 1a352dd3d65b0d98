package models

import (
	"errors"
	"regexp"
	"time"
)

// UserRole represents the role of a user in the system
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleCashier  UserRole = "cashier"
	RoleManager  UserRole = "manager"
	RoleAdmin    UserRole = "admin"
)

// UserRecord is the snapshot of the authenticated user fetched at login
// time. It is not refreshed until the next login.
type UserRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       UserRole  `json:"role"`
	Phone      string    `json:"phone,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate validates the user record
func (u *UserRecord) Validate() error {
	if u.ID == "" {
		return errors.New("user id is required")
	}

	if u.Email == "" {
		return errors.New("email is required")
	}

	if !emailRegex.MatchString(u.Email) {
		return errors.New("email format is invalid")
	}

	if err := validateRole(u.Role); err != nil {
		return err
	}

	return nil
}

// validateRole validates a user role
func validateRole(role UserRole) error {
	switch role {
	case RoleCustomer, RoleCashier, RoleManager, RoleAdmin:
		return nil
	default:
		return errors.New("invalid user role")
	}
}

// IsAdmin returns true if the user is an admin
func (u *UserRecord) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsStaff returns true if the user works a point of sale
func (u *UserRecord) IsStaff() bool {
	return u.Role == RoleCashier || u.Role == RoleManager || u.Role == RoleAdmin
}

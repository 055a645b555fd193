package models

import "time"

// Role names assignable to a user. Each user holds exactly one role.
const (
	RoleAdmin    = "admin"
	RoleChef     = "chef"
	RoleWaiter   = "waiter"
	RoleCustomer = "customer"
)

// IsValidRole checks if the provided role string is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleChef, RoleWaiter, RoleCustomer:
		return true
	default:
		return false
	}
}

// IsStaffRole reports whether the role belongs to restaurant personnel
// (anyone who is not a customer).
func IsStaffRole(role string) bool {
	switch role {
	case RoleAdmin, RoleChef, RoleWaiter:
		return true
	default:
		return false
	}
}

// User represents an account in the system
type User struct {
	ID           int64     `json:"id" db:"id"`
	FullName     string    `json:"full_name" db:"full_name" binding:"required"`
	Email        string    `json:"email" db:"email" binding:"required"`
	PasswordHash string    `json:"-" db:"password_hash"` // '-' means don't send in JSON response
	Role         string    `json:"role" db:"role"`
	// Password-reset state is ephemeral: cleared after use, replaced on regeneration.
	ResetTokenHash    *string    `json:"-" db:"reset_token_hash"`
	ResetTokenExpires *time.Time `json:"-" db:"reset_token_expires"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

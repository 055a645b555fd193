package services

import (
	"errors"
	"strings"
	"time"

	"restaurant_backend/internal/models"
)

var (
	// ErrValidation is returned when request data fails a business rule that
	// binding tags cannot express. Handlers map it to 400.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the acting user lacks the role or
	// ownership an operation requires. Handlers map it to 403.
	ErrForbidden = errors.New("operation not permitted for this user")
)

// Clock supplies the current time to services. Injecting it keeps
// time-dependent rules (special-pricing windows, reservation conflict windows,
// status timestamps) deterministic under test. A nil Clock means time.Now.
type Clock func() time.Time

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Actor identifies the authenticated user a handler is acting for. Handlers
// build it from the JWT claims the auth middleware stores in the gin context.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsStaff() bool {
	return models.IsStaffRole(a.Role)
}

func (a Actor) IsCustomer() bool {
	return a.Role == models.RoleCustomer
}

// canonicalTable matches code against the configured table inventory,
// case-insensitively, and returns the canonical table code.
func canonicalTable(tables []string, code string) (string, bool) {
	for _, t := range tables {
		if strings.EqualFold(t, code) {
			return t, true
		}
	}
	return "", false
}

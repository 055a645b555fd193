package models

import "time"

// Reservation lifecycle statuses. Pending, confirmed and seated reservations
// hold their table and take part in conflict checks; cancelled and completed
// ones do not.
const (
	ReservationStatusPending   = "pending"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusSeated    = "seated"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusCompleted = "completed"
)

// ActiveReservationStatuses are the statuses that block a table slot.
var ActiveReservationStatuses = []string{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusSeated,
}

// IsValidReservationStatus checks if the provided status string is a known reservation status.
func IsValidReservationStatus(status string) bool {
	switch status {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusSeated,
		ReservationStatusCancelled, ReservationStatusCompleted:
		return true
	default:
		return false
	}
}

// Reservation represents a booked table slot.
type Reservation struct {
	ID            int64     `json:"id" db:"id"`
	TableCode     string    `json:"table_code" db:"table_code"`
	CustomerName  string    `json:"customer_name" db:"customer_name"`
	CustomerPhone string    `json:"customer_phone" db:"customer_phone"`
	GuestCount    int       `json:"guest_count" db:"guest_count"`
	ReservedFor   time.Time `json:"reserved_for" db:"reserved_for"`
	Status        string    `json:"status" db:"status"`

	// IsCustomerMade marks self-service reservations, which start out pending
	// and need staff approval before they are confirmed.
	IsCustomerMade bool       `json:"is_customer_made" db:"is_customer_made"`
	CustomerID     *int64     `json:"customer_id,omitempty" db:"customer_id"`
	StaffID        *int64     `json:"staff_id,omitempty" db:"staff_id"`
	ApprovedBy     *int64     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty" db:"approved_at"`

	Notes *string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReservationFilters defines the available filters for querying reservations.
type ReservationFilters struct {
	TableCode  *string `form:"table_code"`
	Status     *string `form:"status"`
	Date       *string `form:"date"` // Expected format YYYY-MM-DD
	CustomerID *int64  `form:"customer_id"`
	Page       int     `form:"page"`
	PageSize   int     `form:"page_size"`
}

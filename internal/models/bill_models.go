package models

import "time"

// Payment statuses of a bill. Allowed transitions are pending -> paid and
// pending -> refunded; every other transition is rejected.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// IsValidPaymentStatus checks if the provided status string is a known payment status.
func IsValidPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Bill is the payable document generated from an order. A full bill carries
// IsSplit=false and is unique per order; split bills share a SplitGroupID.
type Bill struct {
	ID            int64   `json:"id" db:"id"`
	OrderID       int64   `json:"order_id" db:"order_id"`
	StaffID       int64   `json:"staff_id" db:"staff_id"` // who generated the bill
	TotalAmount   float64 `json:"total_amount" db:"total_amount"`
	PaymentStatus string  `json:"payment_status" db:"payment_status"`
	IsSplit       bool    `json:"is_split" db:"is_split"`
	SplitGroupID  *int64  `json:"split_group_id,omitempty" db:"split_group_id"`

	// Snapshots from the source order so a bill reads standalone.
	CustomerName  string  `json:"customer_name" db:"customer_name"`
	CustomerPhone string  `json:"customer_phone" db:"customer_phone"`
	TableCode     string  `json:"table_code" db:"table_code"`
	OrderTotal    float64 `json:"order_total" db:"order_total"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	BillItems []BillItem `json:"bill_items,omitempty"`
	StaffName *string    `json:"staff_name,omitempty"`
}

// BillItem is a priced line on a bill. UnitPrice is re-resolved against the
// catalog at bill-generation time, not copied from the order item.
type BillItem struct {
	ID        int64     `json:"id" db:"id"`
	BillID    int64     `json:"bill_id" db:"bill_id"`
	DishID    int64     `json:"dish_id" db:"dish_id"`
	DishName  string    `json:"dish_name" db:"dish_name"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BillFilters defines the available filters for querying bills.
type BillFilters struct {
	OrderID       *int64  `form:"order_id"`
	StaffID       *int64  `form:"staff_id"`
	PaymentStatus *string `form:"payment_status"`
	IsSplit       *bool   `form:"is_split"`
	Date          *string `form:"date"` // Expected format YYYY-MM-DD
	Page          int     `form:"page"`
	PageSize      int     `form:"page_size"`
}

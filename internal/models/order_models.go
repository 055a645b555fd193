package models

import "time"

// Order-level statuses. "pending", "preparing" and "ready" are derived from the
// item states after every item mutation; "completed" and "cancelled" are only
// reached through explicit staff actions.
const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Per-item statuses of the kitchen workflow.
const (
	ItemStatusPending               = "pending"
	ItemStatusAccepted              = "accepted"
	ItemStatusDeclined              = "declined"
	ItemStatusPreparing             = "preparing"
	ItemStatusReady                 = "ready"
	ItemStatusCancelled             = "cancelled"
	ItemStatusCancellationRequested = "cancellation_requested"
)

// IsValidOrderItemStatus checks if the provided status string is a known item status.
func IsValidOrderItemStatus(status string) bool {
	switch status {
	case ItemStatusPending, ItemStatusAccepted, ItemStatusDeclined,
		ItemStatusPreparing, ItemStatusReady, ItemStatusCancelled,
		ItemStatusCancellationRequested:
		return true
	default:
		return false
	}
}

// IsAcceptedLineage reports whether an item status counts toward the order
// total and toward billing: accepted, preparing or ready. Pending, declined,
// cancelled and cancellation_requested items contribute nothing.
func IsAcceptedLineage(status string) bool {
	switch status {
	case ItemStatusAccepted, ItemStatusPreparing, ItemStatusReady:
		return true
	default:
		return false
	}
}

// Order represents a table order with its items.
type Order struct {
	ID            int64     `json:"id" db:"id"`
	TableCode     string    `json:"table_code" db:"table_code"`
	CustomerName  string    `json:"customer_name" db:"customer_name"`
	CustomerPhone string    `json:"customer_phone" db:"customer_phone"`
	StaffID       int64     `json:"staff_id" db:"staff_id"` // owning waiter
	OrderedAt     time.Time `json:"ordered_at" db:"ordered_at"`
	Status        string    `json:"status" db:"status"`
	TotalAmount   float64   `json:"total_amount" db:"total_amount"`
	Billed        bool      `json:"billed" db:"billed"` // monotonic false -> true

	// First-transition timestamps. PendingAt is stamped at creation, the others
	// exactly once when the order first enters that status.
	PendingAt   *time.Time `json:"pending_at,omitempty" db:"pending_at"`
	PreparingAt *time.Time `json:"preparing_at,omitempty" db:"preparing_at"`
	ReadyAt     *time.Time `json:"ready_at,omitempty" db:"ready_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	OrderItems []OrderItem `json:"order_items,omitempty"`
	StaffName  *string     `json:"staff_name,omitempty"` // For joining with the owning user
}

// OrderItem is a single line of an order. UnitPrice and the dish_* fields are
// snapshots taken at order-creation time and never change afterwards, so later
// catalog edits do not rewrite order history.
type OrderItem struct {
	ID              int64   `json:"id" db:"id"`
	OrderID         int64   `json:"order_id" db:"order_id"`
	DishID          int64   `json:"dish_id" db:"dish_id"`
	DishName        string  `json:"dish_name" db:"dish_name"`
	DishDescription *string `json:"dish_description,omitempty" db:"dish_description"`
	DishCategory    *string `json:"dish_category,omitempty" db:"dish_category"`
	UnitPrice       float64 `json:"unit_price" db:"unit_price"`
	Quantity        int     `json:"quantity" db:"quantity"`
	Status          string  `json:"status" db:"status"`
	// PriorStatus is only set while a cancellation request is open; a rejected
	// request restores the item to exactly this status.
	PriorStatus *string `json:"-" db:"prior_status"`
	Notes       *string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ItemByID returns a pointer into OrderItems for the item with the given id,
// or nil when the order has no such item.
func (o *Order) ItemByID(itemID int64) *OrderItem {
	for i := range o.OrderItems {
		if o.OrderItems[i].ID == itemID {
			return &o.OrderItems[i]
		}
	}
	return nil
}

// OrderFilters defines the available filters for querying orders.
// This struct is used by both the service and repository layers.
type OrderFilters struct {
	StaffID   *int64  `form:"staff_id"`
	TableCode *string `form:"table_code"`
	Status    *string `form:"status"`
	Billed    *bool   `form:"billed"`
	Date      *string `form:"date"` // Expected format YYYY-MM-DD
	Page      int     `form:"page"`
	PageSize  int     `form:"page_size"`
}

package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"restaurant_backend/internal/models"
	"strings"
	"time"

	"github.com/lib/pq" // For pq.Error
)

// OrderRepository defines the interface for order-related database operations.
//
// Methods taking an SQLExecutor participate in the caller's transaction; the
// order service locks the order row (GetOrderForUpdate) before any
// state-dependent mutation so that derivation of status and total always runs
// against a consistent snapshot of the items.
type OrderRepository interface {
	// Order methods
	CreateOrder(executor SQLExecutor, order *models.Order) (int64, error)
	GetOrderByID(orderID int64) (*models.Order, error) // Display read, joins staff name
	GetOrderForUpdate(executor SQLExecutor, orderID int64) (*models.Order, error)
	GetOrders(filters models.OrderFilters) ([]models.Order, int, error) // orders, total count, error
	UpdateOrderDerivedState(executor SQLExecutor, order *models.Order) error

	// OrderItem methods
	CreateOrderItem(executor SQLExecutor, item *models.OrderItem) (int64, error)
	GetOrderItemsByOrderID(executor SQLExecutor, orderID int64) ([]models.OrderItem, error)
	UpdateOrderItemStatus(executor SQLExecutor, item *models.OrderItem) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// --- Order Methods ---

func (r *orderRepository) CreateOrder(executor SQLExecutor, order *models.Order) (int64, error) {
	query := `INSERT INTO orders
	            (table_code, customer_name, customer_phone, staff_id, ordered_at, status,
	             total_amount, billed, pending_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now()
	}

	err := executor.QueryRow(query,
		order.TableCode, order.CustomerName, order.CustomerPhone, order.StaffID,
		order.OrderedAt, order.Status, order.TotalAmount, order.Billed, order.PendingAt,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, fmt.Errorf("%w: creating order (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return 0, fmt.Errorf("%w: creating order: %v", ErrDatabaseError, err)
	}
	return order.ID, nil
}

const orderColumns = `o.id, o.table_code, o.customer_name, o.customer_phone, o.staff_id,
	o.ordered_at, o.status, o.total_amount, o.billed,
	o.pending_at, o.preparing_at, o.ready_at, o.completed_at,
	o.created_at, o.updated_at`

func scanOrder(row scanner, o *models.Order, extraDest ...interface{}) error {
	dest := []interface{}{
		&o.ID, &o.TableCode, &o.CustomerName, &o.CustomerPhone, &o.StaffID,
		&o.OrderedAt, &o.Status, &o.TotalAmount, &o.Billed,
		&o.PendingAt, &o.PreparingAt, &o.ReadyAt, &o.CompletedAt,
		&o.CreatedAt, &o.UpdatedAt,
	}
	dest = append(dest, extraDest...)
	return row.Scan(dest...)
}

func (r *orderRepository) GetOrderByID(orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + `, u.full_name AS staff_name
	          FROM orders o
	          LEFT JOIN users u ON o.staff_id = u.id
	          WHERE o.id = $1`

	var staffName sql.NullString
	err := scanOrder(r.db.QueryRow(query, orderID), order, &staffName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting order by ID %d: %v", ErrDatabaseError, orderID, err)
	}
	if staffName.Valid {
		order.StaffName = &staffName.String
	}
	return order, nil
}

// GetOrderForUpdate reads the order row under a row lock. Must be called with a
// *sql.Tx executor; the lock is released at commit/rollback.
func (r *orderRepository) GetOrderForUpdate(executor SQLExecutor, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 FOR UPDATE`

	err := scanOrder(executor.QueryRow(query, orderID), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, u.full_name AS staff_name,
	          COUNT(*) OVER() AS total_count
	        FROM orders o
	        LEFT JOIN users u ON o.staff_id = u.id`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.StaffID != nil {
		conditions = append(conditions, fmt.Sprintf("o.staff_id = $%d", argCounter))
		args = append(args, *filters.StaffID)
		argCounter++
	}
	if filters.TableCode != nil && *filters.TableCode != "" {
		conditions = append(conditions, fmt.Sprintf("o.table_code = $%d", argCounter))
		args = append(args, *filters.TableCode)
		argCounter++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.Billed != nil {
		conditions = append(conditions, fmt.Sprintf("o.billed = $%d", argCounter))
		args = append(args, *filters.Billed)
		argCounter++
	}
	if filters.Date != nil && *filters.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", *filters.Date)
		if err == nil {
			startOfDay := time.Date(parsedDate.Year(), parsedDate.Month(), parsedDate.Day(), 0, 0, 0, 0, parsedDate.Location())
			endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
			conditions = append(conditions, fmt.Sprintf("o.ordered_at BETWEEN $%d AND $%d", argCounter, argCounter+1))
			args = append(args, startOfDay, endOfDay)
			argCounter += 2
		}
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY o.ordered_at DESC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 0 {
			offset := (filters.Page - 1) * filters.PageSize
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying orders: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		var staffName sql.NullString

		if err := scanOrder(rows, &o, &staffName, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		if staffName.Valid {
			o.StaffName = &staffName.String
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

// UpdateOrderDerivedState persists the recomputed aggregate fields: status,
// total, billed flag and the first-transition timestamps. pending_at is written
// once at creation and never rewritten here.
func (r *orderRepository) UpdateOrderDerivedState(executor SQLExecutor, order *models.Order) error {
	query := `UPDATE orders SET
	            status = $1, total_amount = $2, billed = $3,
	            preparing_at = $4, ready_at = $5, completed_at = $6, updated_at = $7
	          WHERE id = $8`
	order.UpdatedAt = time.Now()

	result, err := executor.Exec(query,
		order.Status, order.TotalAmount, order.Billed,
		order.PreparingAt, order.ReadyAt, order.CompletedAt, order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating order state for ID %d: %v", ErrDatabaseError, order.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for order state update ID %d: %v", ErrDatabaseError, order.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- OrderItem Methods ---

func (r *orderRepository) CreateOrderItem(executor SQLExecutor, item *models.OrderItem) (int64, error) {
	query := `INSERT INTO order_items
	            (order_id, dish_id, dish_name, dish_description, dish_category,
	             unit_price, quantity, status, prior_status, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}

	err := executor.QueryRow(query,
		item.OrderID, item.DishID, item.DishName, item.DishDescription, item.DishCategory,
		item.UnitPrice, item.Quantity, item.Status, item.PriorStatus, item.Notes,
		item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, fmt.Errorf("%w: creating order item (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return 0, fmt.Errorf("%w: creating order item: %v", ErrDatabaseError, err)
	}
	return item.ID, nil
}

func (r *orderRepository) GetOrderItemsByOrderID(executor SQLExecutor, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	query := `SELECT id, order_id, dish_id, dish_name, dish_description, dish_category,
	            unit_price, quantity, status, prior_status, notes, created_at, updated_at
	          FROM order_items
	          WHERE order_id = $1
	          ORDER BY id`

	rows, err := executor.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying order items for order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.DishID, &item.DishName, &item.DishDescription, &item.DishCategory,
			&item.UnitPrice, &item.Quantity, &item.Status, &item.PriorStatus, &item.Notes,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning order item for order ID %d: %v", ErrDatabaseError, orderID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order item rows for order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return items, nil
}

func (r *orderRepository) UpdateOrderItemStatus(executor SQLExecutor, item *models.OrderItem) error {
	query := `UPDATE order_items SET status = $1, prior_status = $2, updated_at = $3 WHERE id = $4`
	item.UpdatedAt = time.Now()

	result, err := executor.Exec(query, item.Status, item.PriorStatus, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("%w: updating order item status for ID %d: %v", ErrDatabaseError, item.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for order item update ID %d: %v", ErrDatabaseError, item.ID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

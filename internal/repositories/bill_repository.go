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

// BillRepository defines the interface for billing database operations.
type BillRepository interface {
	CreateBill(executor SQLExecutor, bill *models.Bill) (int64, error)
	CreateBillItem(executor SQLExecutor, item *models.BillItem) (int64, error)
	GetBillByID(billID int64) (*models.Bill, error) // Joins staff name
	GetBillForUpdate(executor SQLExecutor, billID int64) (*models.Bill, error)
	GetBillItemsByBillID(billID int64) ([]models.BillItem, error)
	GetBills(filters models.BillFilters) ([]models.Bill, int, error) // bills, total count, error
	// NextSplitGroupID draws a fresh group id shared by all sub-bills of one split.
	NextSplitGroupID(executor SQLExecutor) (int64, error)
	UpdateBillPaymentStatus(executor SQLExecutor, billID int64, status string, updatedAt time.Time) error
}

type billRepository struct {
	db *sql.DB
}

// NewBillRepository creates a new instance of BillRepository.
func NewBillRepository(db *sql.DB) BillRepository {
	return &billRepository{db: db}
}

// --- Bill Methods ---

func (r *billRepository) CreateBill(executor SQLExecutor, bill *models.Bill) (int64, error) {
	query := `INSERT INTO bills
	            (order_id, staff_id, total_amount, payment_status, is_split, split_group_id,
	             customer_name, customer_phone, table_code, order_total, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`

	currentTime := time.Now()
	bill.CreatedAt = currentTime
	bill.UpdatedAt = currentTime

	err := executor.QueryRow(query,
		bill.OrderID, bill.StaffID, bill.TotalAmount, bill.PaymentStatus, bill.IsSplit, bill.SplitGroupID,
		bill.CustomerName, bill.CustomerPhone, bill.TableCode, bill.OrderTotal,
		bill.CreatedAt, bill.UpdatedAt,
	).Scan(&bill.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code.Name() == "unique_violation" {
				// The partial unique index allows at most one non-split bill per order.
				return 0, fmt.Errorf("%w: order %d already has a bill (constraint: %s)", ErrDuplicateKey, bill.OrderID, pqErr.Constraint)
			}
			if pqErr.Code == "23503" {
				return 0, fmt.Errorf("%w: creating bill (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
			}
		}
		return 0, fmt.Errorf("%w: creating bill: %v", ErrDatabaseError, err)
	}
	return bill.ID, nil
}

const billColumns = `b.id, b.order_id, b.staff_id, b.total_amount, b.payment_status,
	b.is_split, b.split_group_id, b.customer_name, b.customer_phone, b.table_code,
	b.order_total, b.created_at, b.updated_at`

func scanBill(row scanner, b *models.Bill, extraDest ...interface{}) error {
	dest := []interface{}{
		&b.ID, &b.OrderID, &b.StaffID, &b.TotalAmount, &b.PaymentStatus,
		&b.IsSplit, &b.SplitGroupID, &b.CustomerName, &b.CustomerPhone, &b.TableCode,
		&b.OrderTotal, &b.CreatedAt, &b.UpdatedAt,
	}
	dest = append(dest, extraDest...)
	return row.Scan(dest...)
}

func (r *billRepository) GetBillByID(billID int64) (*models.Bill, error) {
	bill := &models.Bill{}
	query := `SELECT ` + billColumns + `, u.full_name AS staff_name
	          FROM bills b
	          LEFT JOIN users u ON b.staff_id = u.id
	          WHERE b.id = $1`

	var staffName sql.NullString
	err := scanBill(r.db.QueryRow(query, billID), bill, &staffName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting bill by ID %d: %v", ErrDatabaseError, billID, err)
	}
	if staffName.Valid {
		bill.StaffName = &staffName.String
	}
	return bill, nil
}

// GetBillForUpdate reads the bill row under a row lock so a payment transition
// sees the current status. Must be called with a *sql.Tx executor.
func (r *billRepository) GetBillForUpdate(executor SQLExecutor, billID int64) (*models.Bill, error) {
	bill := &models.Bill{}
	query := `SELECT ` + billColumns + ` FROM bills b WHERE b.id = $1 FOR UPDATE`

	err := scanBill(executor.QueryRow(query, billID), bill)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking bill ID %d: %v", ErrDatabaseError, billID, err)
	}
	return bill, nil
}

func (r *billRepository) GetBills(filters models.BillFilters) ([]models.Bill, int, error) {
	bills := []models.Bill{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + billColumns + `, u.full_name AS staff_name,
	          COUNT(*) OVER() AS total_count
	        FROM bills b
	        LEFT JOIN users u ON b.staff_id = u.id`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.OrderID != nil {
		conditions = append(conditions, fmt.Sprintf("b.order_id = $%d", argCounter))
		args = append(args, *filters.OrderID)
		argCounter++
	}
	if filters.StaffID != nil {
		conditions = append(conditions, fmt.Sprintf("b.staff_id = $%d", argCounter))
		args = append(args, *filters.StaffID)
		argCounter++
	}
	if filters.PaymentStatus != nil && *filters.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("b.payment_status = $%d", argCounter))
		args = append(args, *filters.PaymentStatus)
		argCounter++
	}
	if filters.IsSplit != nil {
		conditions = append(conditions, fmt.Sprintf("b.is_split = $%d", argCounter))
		args = append(args, *filters.IsSplit)
		argCounter++
	}
	if filters.Date != nil && *filters.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", *filters.Date)
		if err == nil {
			startOfDay := time.Date(parsedDate.Year(), parsedDate.Month(), parsedDate.Day(), 0, 0, 0, 0, parsedDate.Location())
			endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
			conditions = append(conditions, fmt.Sprintf("b.created_at BETWEEN $%d AND $%d", argCounter, argCounter+1))
			args = append(args, startOfDay, endOfDay)
			argCounter += 2
		}
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY b.created_at DESC")

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
		return nil, 0, fmt.Errorf("%w: querying bills: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Bill
		var staffName sql.NullString

		if err := scanBill(rows, &b, &staffName, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning bill: %v", ErrDatabaseError, err)
		}
		if staffName.Valid {
			b.StaffName = &staffName.String
		}
		bills = append(bills, b)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating bill rows: %v", ErrDatabaseError, err)
	}
	return bills, totalCount, nil
}

func (r *billRepository) NextSplitGroupID(executor SQLExecutor) (int64, error) {
	var groupID int64
	err := executor.QueryRow(`SELECT nextval('bill_split_group_seq')`).Scan(&groupID)
	if err != nil {
		return 0, fmt.Errorf("%w: drawing split group id: %v", ErrDatabaseError, err)
	}
	return groupID, nil
}

func (r *billRepository) UpdateBillPaymentStatus(executor SQLExecutor, billID int64, status string, updatedAt time.Time) error {
	query := `UPDATE bills SET payment_status = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, status, updatedAt, billID)
	if err != nil {
		return fmt.Errorf("%w: updating payment status for bill ID %d: %v", ErrDatabaseError, billID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for bill payment update ID %d: %v", ErrDatabaseError, billID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- BillItem Methods ---

func (r *billRepository) CreateBillItem(executor SQLExecutor, item *models.BillItem) (int64, error) {
	query := `INSERT INTO bill_items
	            (bill_id, dish_id, dish_name, quantity, unit_price, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	err := executor.QueryRow(query,
		item.BillID, item.DishID, item.DishName, item.Quantity, item.UnitPrice, item.CreatedAt,
	).Scan(&item.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return 0, fmt.Errorf("%w: creating bill item (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return 0, fmt.Errorf("%w: creating bill item: %v", ErrDatabaseError, err)
	}
	return item.ID, nil
}

func (r *billRepository) GetBillItemsByBillID(billID int64) ([]models.BillItem, error) {
	items := []models.BillItem{}
	query := `SELECT id, bill_id, dish_id, dish_name, quantity, unit_price, created_at
	          FROM bill_items
	          WHERE bill_id = $1
	          ORDER BY id`

	rows, err := r.db.Query(query, billID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying bill items for bill ID %d: %v", ErrDatabaseError, billID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.BillItem
		err := rows.Scan(&item.ID, &item.BillID, &item.DishID, &item.DishName,
			&item.Quantity, &item.UnitPrice, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning bill item for bill ID %d: %v", ErrDatabaseError, billID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating bill item rows for bill ID %d: %v", ErrDatabaseError, billID, err)
	}
	return items, nil
}

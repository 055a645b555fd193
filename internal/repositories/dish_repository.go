package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"restaurant_backend/internal/models"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DishRepository defines the interface for menu catalog database operations.
type DishRepository interface {
	CreateDish(executor SQLExecutor, dish *models.Dish) (int64, error)
	GetDishByID(id int64) (*models.Dish, error)
	GetDishes(filters models.DishFilters) ([]models.Dish, int, error) // Returns dishes, total count, error
	UpdateDish(executor SQLExecutor, dish *models.Dish) error
	DeleteDish(executor SQLExecutor, id int64) error
	SetAvailability(executor SQLExecutor, id int64, available bool) error
	// CountOpenOrderReferences reports how many unbilled, non-cancelled orders
	// still carry items for the dish. Used to block catalog deletion.
	CountOpenOrderReferences(id int64) (int, error)
}

type dishRepository struct {
	db *sql.DB
}

// NewDishRepository creates a new instance of DishRepository.
func NewDishRepository(db *sql.DB) DishRepository {
	return &dishRepository{db: db}
}

const dishColumns = `id, name, description, price, category, is_available, dietary_tags,
	is_special, special_price, special_from, special_until, created_at, updated_at`

func scanDish(row scanner, dish *models.Dish, extraDest ...interface{}) error {
	dest := []interface{}{
		&dish.ID, &dish.Name, &dish.Description, &dish.Price, &dish.Category,
		&dish.IsAvailable, &dish.DietaryTags,
		&dish.IsSpecial, &dish.SpecialPrice, &dish.SpecialFrom, &dish.SpecialUntil,
		&dish.CreatedAt, &dish.UpdatedAt,
	}
	dest = append(dest, extraDest...)
	return row.Scan(dest...)
}

func (r *dishRepository) CreateDish(executor SQLExecutor, dish *models.Dish) (int64, error) {
	query := `INSERT INTO dishes
	            (name, description, price, category, is_available, dietary_tags,
	             is_special, special_price, special_from, special_until, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id`
	currentTime := time.Now()

	err := executor.QueryRow(query,
		dish.Name, dish.Description, dish.Price, dish.Category, dish.IsAvailable, dish.DietaryTags,
		dish.IsSpecial, dish.SpecialPrice, dish.SpecialFrom, dish.SpecialUntil,
		currentTime, currentTime,
	).Scan(&dish.ID)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: dish name '%s' already exists (constraint: %s)", ErrDuplicateKey, dish.Name, pqErr.Constraint)
		}
		return 0, fmt.Errorf("%w: creating dish: %v", ErrDatabaseError, err)
	}
	return dish.ID, nil
}

func (r *dishRepository) GetDishByID(id int64) (*models.Dish, error) {
	dish := &models.Dish{}
	query := `SELECT ` + dishColumns + ` FROM dishes WHERE id = $1`
	err := scanDish(r.db.QueryRow(query, id), dish)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting dish by ID %d: %v", ErrDatabaseError, id, err)
	}
	return dish, nil
}

func (r *dishRepository) GetDishes(filters models.DishFilters) ([]models.Dish, int, error) {
	dishes := []models.Dish{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + dishColumns + `, COUNT(*) OVER() AS total_count FROM dishes`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.Category != nil && *filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argCount))
		args = append(args, *filters.Category)
		argCount++
	}
	if filters.Available != nil {
		conditions = append(conditions, fmt.Sprintf("is_available = $%d", argCount))
		args = append(args, *filters.Available)
		argCount++
	}
	if filters.Special != nil {
		conditions = append(conditions, fmt.Sprintf("is_special = $%d", argCount))
		args = append(args, *filters.Special)
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY category, name")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: getting dishes: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var dish models.Dish
		if err := scanDish(rows, &dish, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning dish: %v", ErrDatabaseError, err)
		}
		dishes = append(dishes, dish)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating dishes: %v", ErrDatabaseError, err)
	}
	return dishes, totalCount, nil
}

func (r *dishRepository) UpdateDish(executor SQLExecutor, dish *models.Dish) error {
	query := `UPDATE dishes SET
	            name = $1, description = $2, price = $3, category = $4, is_available = $5,
	            dietary_tags = $6, is_special = $7, special_price = $8, special_from = $9,
	            special_until = $10, updated_at = $11
	          WHERE id = $12`

	result, err := executor.Exec(query,
		dish.Name, dish.Description, dish.Price, dish.Category, dish.IsAvailable,
		dish.DietaryTags, dish.IsSpecial, dish.SpecialPrice, dish.SpecialFrom,
		dish.SpecialUntil, time.Now(), dish.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: dish name '%s' already exists (constraint: %s)", ErrDuplicateKey, dish.Name, pqErr.Constraint)
		}
		return fmt.Errorf("%w: updating dish ID %d: %v", ErrDatabaseError, dish.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dishRepository) DeleteDish(executor SQLExecutor, id int64) error {
	query := `DELETE FROM dishes WHERE id = $1`
	result, err := executor.Exec(query, id)
	if err != nil {
		return fmt.Errorf("%w: deleting dish ID %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dishRepository) SetAvailability(executor SQLExecutor, id int64, available bool) error {
	query := `UPDATE dishes SET is_available = $1, updated_at = $2 WHERE id = $3`
	result, err := executor.Exec(query, available, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: setting availability for dish ID %d: %v", ErrDatabaseError, id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dishRepository) CountOpenOrderReferences(id int64) (int, error) {
	var count int
	query := `SELECT COUNT(*)
	          FROM order_items oi
	          JOIN orders o ON oi.order_id = o.id
	          WHERE oi.dish_id = $1
	            AND o.billed = FALSE
	            AND o.status NOT IN ($2, $3)`
	err := r.db.QueryRow(query, id, models.OrderStatusCompleted, models.OrderStatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting open order references for dish ID %d: %v", ErrDatabaseError, id, err)
	}
	return count, nil
}

package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"restaurant_backend/internal/models"
	"strings"
	"time"
)

// ReservationRepository defines the interface for reservation database operations.
type ReservationRepository interface {
	CreateReservation(executor SQLExecutor, reservation *models.Reservation) (*models.Reservation, error)
	GetReservationByID(id int64) (*models.Reservation, error)
	GetReservations(filters models.ReservationFilters) ([]models.Reservation, int, error) // Reservations, total count
	UpdateReservation(executor SQLExecutor, reservation *models.Reservation) (*models.Reservation, error)
	// CountConflicts counts reservations holding the table within the given
	// window, inclusive at both ends. Only pending/confirmed/seated reservations
	// count; excludeReservationID skips the record being updated.
	CountConflicts(tableCode string, windowStart, windowEnd time.Time, excludeReservationID *int64) (int, error)
}

type reservationRepository struct {
	db *sql.DB
}

// NewReservationRepository creates a new instance of ReservationRepository.
func NewReservationRepository(db *sql.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `id, table_code, customer_name, customer_phone, guest_count,
	reserved_for, status, is_customer_made, customer_id, staff_id,
	approved_by, approved_at, notes, created_at, updated_at`

func scanReservation(row scanner, res *models.Reservation, extraDest ...interface{}) error {
	dest := []interface{}{
		&res.ID, &res.TableCode, &res.CustomerName, &res.CustomerPhone, &res.GuestCount,
		&res.ReservedFor, &res.Status, &res.IsCustomerMade, &res.CustomerID, &res.StaffID,
		&res.ApprovedBy, &res.ApprovedAt, &res.Notes, &res.CreatedAt, &res.UpdatedAt,
	}
	dest = append(dest, extraDest...)
	return row.Scan(dest...)
}

func (r *reservationRepository) CreateReservation(executor SQLExecutor, reservation *models.Reservation) (*models.Reservation, error) {
	query := `INSERT INTO reservations
	            (table_code, customer_name, customer_phone, guest_count, reserved_for, status,
	             is_customer_made, customer_id, staff_id, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          RETURNING id, created_at, updated_at`

	currentTime := time.Now()
	reservation.CreatedAt = currentTime
	reservation.UpdatedAt = currentTime

	err := executor.QueryRow(query,
		reservation.TableCode, reservation.CustomerName, reservation.CustomerPhone,
		reservation.GuestCount, reservation.ReservedFor, reservation.Status,
		reservation.IsCustomerMade, reservation.CustomerID, reservation.StaffID,
		reservation.Notes, reservation.CreatedAt, reservation.UpdatedAt,
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("%w: creating reservation: %v", ErrDatabaseError, err)
	}
	return reservation, nil
}

func (r *reservationRepository) GetReservationByID(id int64) (*models.Reservation, error) {
	reservation := &models.Reservation{}
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	err := scanReservation(r.db.QueryRow(query, id), reservation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting reservation by ID %d: %v", ErrDatabaseError, id, err)
	}
	return reservation, nil
}

func (r *reservationRepository) GetReservations(filters models.ReservationFilters) ([]models.Reservation, int, error) {
	reservations := []models.Reservation{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + reservationColumns + `, COUNT(*) OVER() AS total_count FROM reservations`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filters.TableCode != nil && *filters.TableCode != "" {
		conditions = append(conditions, fmt.Sprintf("table_code = $%d", argCount))
		args = append(args, *filters.TableCode)
		argCount++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argCount))
		args = append(args, *filters.CustomerID)
		argCount++
	}
	if filters.Date != nil && *filters.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", *filters.Date)
		if err == nil {
			startOfDay := time.Date(parsedDate.Year(), parsedDate.Month(), parsedDate.Day(), 0, 0, 0, 0, parsedDate.Location())
			endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
			conditions = append(conditions, fmt.Sprintf("reserved_for BETWEEN $%d AND $%d", argCount, argCount+1))
			args = append(args, startOfDay, endOfDay)
			argCount += 2
		}
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY reserved_for DESC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCount))
		args = append(args, filters.PageSize)
		argCount++
		if filters.Page > 0 {
			offset := (filters.Page - 1) * filters.PageSize
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCount))
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying reservations: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var res models.Reservation
		if err := scanReservation(rows, &res, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning reservation: %v", ErrDatabaseError, err)
		}
		reservations = append(reservations, res)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating reservation rows: %v", ErrDatabaseError, err)
	}
	return reservations, totalCount, nil
}

func (r *reservationRepository) UpdateReservation(executor SQLExecutor, reservation *models.Reservation) (*models.Reservation, error) {
	query := `UPDATE reservations SET
	            table_code = $1, customer_name = $2, customer_phone = $3, guest_count = $4,
	            reserved_for = $5, status = $6, approved_by = $7, approved_at = $8,
	            notes = $9, updated_at = $10
	          WHERE id = $11
	          RETURNING updated_at`
	reservation.UpdatedAt = time.Now()

	err := executor.QueryRow(query,
		reservation.TableCode, reservation.CustomerName, reservation.CustomerPhone,
		reservation.GuestCount, reservation.ReservedFor, reservation.Status,
		reservation.ApprovedBy, reservation.ApprovedAt, reservation.Notes,
		reservation.UpdatedAt, reservation.ID,
	).Scan(&reservation.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: updating reservation ID %d: %v", ErrDatabaseError, reservation.ID, err)
	}
	return reservation, nil
}

func (r *reservationRepository) CountConflicts(tableCode string, windowStart, windowEnd time.Time, excludeReservationID *int64) (int, error) {
	var statusPlaceholders []string
	args := []interface{}{tableCode, windowStart, windowEnd}
	argIdx := 4 // Start after tableCode, windowStart, windowEnd

	for _, status := range models.ActiveReservationStatuses {
		statusPlaceholders = append(statusPlaceholders, fmt.Sprintf("$%d", argIdx))
		args = append(args, status)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM reservations
	          WHERE table_code = $1
	          AND status IN (%s)
	          AND reserved_for BETWEEN $2 AND $3`, strings.Join(statusPlaceholders, ", "))

	if excludeReservationID != nil {
		query += fmt.Sprintf(" AND id != $%d", argIdx)
		args = append(args, *excludeReservationID)
	}

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting conflicting reservations: %v", ErrDatabaseError, err)
	}
	return count, nil
}

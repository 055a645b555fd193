package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/notifier"
	"restaurant_backend/internal/repositories"
	"restaurant_backend/pkg/utils"
)

// --- Custom Service Errors for Reservations ---
var (
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationConflict  = errors.New("table is already reserved within two hours of that time")
	ErrReservationImmutable = errors.New("reservation can no longer be changed")
)

// conflictWindow is the half-width of the interval around a requested time in
// which another active reservation on the same table counts as a conflict.
const conflictWindow = 2 * time.Hour

// --- Data Transfer Objects (DTOs) ---

// CreateReservationRequest books a table. Customer-submitted reservations
// start pending; staff-submitted ones are confirmed immediately.
type CreateReservationRequest struct {
	TableCode     string    `json:"table_code" binding:"required"`
	CustomerName  string    `json:"customer_name" binding:"required"`
	CustomerPhone string    `json:"customer_phone" binding:"required"`
	GuestCount    int       `json:"guest_count" binding:"required,gt=0"`
	ReservedFor   time.Time `json:"reserved_for" binding:"required"`
	Notes         *string   `json:"notes"`
}

// UpdateReservationRequest edits a reservation. Only provided fields change.
type UpdateReservationRequest struct {
	TableCode     *string    `json:"table_code"`
	CustomerName  *string    `json:"customer_name"`
	CustomerPhone *string    `json:"customer_phone"`
	GuestCount    *int       `json:"guest_count"`
	ReservedFor   *time.Time `json:"reserved_for"`
	Notes         *string    `json:"notes"`
}

// ApproveReservationRequest carries the admin's decision on a pending
// customer-made reservation.
type ApproveReservationRequest struct {
	Decision string `json:"decision" binding:"required"` // approve | reject
}

// --- ReservationService Interface ---
type ReservationService interface {
	CreateReservation(actor Actor, req CreateReservationRequest) (*models.Reservation, error)
	GetReservationByID(actor Actor, reservationID int64) (*models.Reservation, error)
	GetReservations(actor Actor, filters models.ReservationFilters) ([]models.Reservation, int, error)
	UpdateReservation(actor Actor, reservationID int64, req UpdateReservationRequest) (*models.Reservation, error)
	ApproveReservation(actor Actor, reservationID int64, req ApproveReservationRequest) (*models.Reservation, error)
	CancelReservation(actor Actor, reservationID int64) (*models.Reservation, error)
	SeatReservation(actor Actor, reservationID int64) (*models.Reservation, error)
	CompleteReservation(actor Actor, reservationID int64) (*models.Reservation, error)
	Tables() []string
	CheckAvailability(at time.Time) ([]string, error)
}

// --- reservationService Implementation ---
type reservationService struct {
	reservationRepo repositories.ReservationRepository
	db              *sql.DB
	tables          []string
	notifier        notifier.Notifier
	clock           Clock
}

// NewReservationService creates a new instance of ReservationService.
func NewReservationService(
	rr repositories.ReservationRepository,
	db *sql.DB,
	tables []string,
	n notifier.Notifier,
	clock Clock,
) ReservationService {
	return &reservationService{
		reservationRepo: rr,
		db:              db,
		tables:          tables,
		notifier:        n,
		clock:           clockOrDefault(clock),
	}
}

// --- Method Implementations ---

func (s *reservationService) CreateReservation(actor Actor, req CreateReservationRequest) (*models.Reservation, error) {
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer name cannot be empty", ErrValidation)
	}
	if !utils.IsValidPhoneE164(req.CustomerPhone) {
		return nil, fmt.Errorf("%w: customer phone must be in E.164 format", ErrValidation)
	}
	if req.GuestCount < 1 {
		return nil, fmt.Errorf("%w: guest count must be at least 1", ErrValidation)
	}
	tableCode, ok := canonicalTable(s.tables, req.TableCode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table '%s'", ErrValidation, req.TableCode)
	}
	if !req.ReservedFor.After(s.clock()) {
		return nil, fmt.Errorf("%w: reservation time must be in the future", ErrValidation)
	}

	if err := s.ensureNoConflict(tableCode, req.ReservedFor, nil); err != nil {
		return nil, err
	}

	reservation := models.Reservation{
		TableCode:     tableCode,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: req.CustomerPhone,
		GuestCount:    req.GuestCount,
		ReservedFor:   req.ReservedFor,
		Notes:         req.Notes,
	}
	if actor.IsCustomer() {
		customerID := actor.UserID
		reservation.Status = models.ReservationStatusPending
		reservation.IsCustomerMade = true
		reservation.CustomerID = &customerID
	} else {
		staffID := actor.UserID
		reservation.Status = models.ReservationStatusConfirmed
		reservation.IsCustomerMade = false
		reservation.StaffID = &staffID
	}

	created, err := s.reservationRepo.CreateReservation(s.db, &reservation)
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	return created, nil
}

func (s *reservationService) GetReservationByID(actor Actor, reservationID int64) (*models.Reservation, error) {
	reservation, err := s.loadReservation(reservationID)
	if err != nil {
		return nil, err
	}
	if actor.IsCustomer() && !ownsReservation(actor, reservation) {
		return nil, fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
	}
	return reservation, nil
}

func (s *reservationService) GetReservations(actor Actor, filters models.ReservationFilters) ([]models.Reservation, int, error) {
	if actor.IsCustomer() {
		// Customers only ever see their own reservations.
		customerID := actor.UserID
		filters.CustomerID = &customerID
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 10
	}
	reservations, totalCount, err := s.reservationRepo.GetReservations(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get reservations: %w", err)
	}
	return reservations, totalCount, nil
}

// UpdateReservation edits the booking details. Customers may only touch their
// own reservation while it is still pending; staff may edit any reservation
// that has not yet been seated. Moving the reservation to another table or
// time re-runs the conflict check, excluding the reservation's own record.
func (s *reservationService) UpdateReservation(actor Actor, reservationID int64, req UpdateReservationRequest) (*models.Reservation, error) {
	reservation, err := s.loadReservation(reservationID)
	if err != nil {
		return nil, err
	}

	if actor.IsCustomer() {
		if !ownsReservation(actor, reservation) {
			return nil, fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
		}
		if reservation.Status != models.ReservationStatusPending {
			return nil, fmt.Errorf("%w: a customer may only edit a pending reservation", ErrReservationImmutable)
		}
	} else {
		switch reservation.Status {
		case models.ReservationStatusPending, models.ReservationStatusConfirmed:
			// Still editable.
		default:
			return nil, fmt.Errorf("%w: status is '%s'", ErrReservationImmutable, reservation.Status)
		}
	}

	slotChanged := false
	if req.TableCode != nil {
		tableCode, ok := canonicalTable(s.tables, *req.TableCode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown table '%s'", ErrValidation, *req.TableCode)
		}
		if tableCode != reservation.TableCode {
			reservation.TableCode = tableCode
			slotChanged = true
		}
	}
	if req.ReservedFor != nil && !req.ReservedFor.Equal(reservation.ReservedFor) {
		if !req.ReservedFor.After(s.clock()) {
			return nil, fmt.Errorf("%w: reservation time must be in the future", ErrValidation)
		}
		reservation.ReservedFor = *req.ReservedFor
		slotChanged = true
	}
	if req.CustomerName != nil {
		if strings.TrimSpace(*req.CustomerName) == "" {
			return nil, fmt.Errorf("%w: customer name cannot be empty", ErrValidation)
		}
		reservation.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.CustomerPhone != nil {
		if !utils.IsValidPhoneE164(*req.CustomerPhone) {
			return nil, fmt.Errorf("%w: customer phone must be in E.164 format", ErrValidation)
		}
		reservation.CustomerPhone = *req.CustomerPhone
	}
	if req.GuestCount != nil {
		if *req.GuestCount < 1 {
			return nil, fmt.Errorf("%w: guest count must be at least 1", ErrValidation)
		}
		reservation.GuestCount = *req.GuestCount
	}
	if req.Notes != nil {
		reservation.Notes = req.Notes
	}

	if slotChanged {
		if err := s.ensureNoConflict(reservation.TableCode, reservation.ReservedFor, &reservation.ID); err != nil {
			return nil, err
		}
	}

	return s.saveReservation(reservation)
}

// ApproveReservation settles a pending customer-made reservation. Approval
// confirms it and records who approved it when; rejection cancels it. The
// customer is notified best-effort either way.
func (s *reservationService) ApproveReservation(actor Actor, reservationID int64, req ApproveReservationRequest) (*models.Reservation, error) {
	if req.Decision != CancellationApprove && req.Decision != CancellationReject {
		return nil, fmt.Errorf("%w: decision must be '%s' or '%s'", ErrValidation, CancellationApprove, CancellationReject)
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin may approve reservations", ErrForbidden)
	}

	reservation, err := s.loadReservation(reservationID)
	if err != nil {
		return nil, err
	}
	if !reservation.IsCustomerMade || reservation.Status != models.ReservationStatusPending {
		return nil, fmt.Errorf("%w: only a pending customer reservation can be approved or rejected", ErrReservationImmutable)
	}

	var message string
	when := reservation.ReservedFor.Format("Jan 2, 2006 at 3:04 PM")
	if req.Decision == CancellationApprove {
		approvedBy := actor.UserID
		approvedAt := s.clock()
		reservation.Status = models.ReservationStatusConfirmed
		reservation.ApprovedBy = &approvedBy
		reservation.ApprovedAt = &approvedAt
		message = fmt.Sprintf("Dear %s, your reservation for table %s on %s is confirmed. We look forward to seeing you!",
			reservation.CustomerName, reservation.TableCode, when)
	} else {
		reservation.Status = models.ReservationStatusCancelled
		message = fmt.Sprintf("Dear %s, we are sorry: your reservation request for table %s on %s could not be accommodated.",
			reservation.CustomerName, reservation.TableCode, when)
	}

	updated, err := s.saveReservation(reservation)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Send(updated.CustomerPhone, message)
	}
	return updated, nil
}

// CancelReservation releases the table slot. Customers may cancel their own
// pending reservation; staff may cancel any still-active one.
func (s *reservationService) CancelReservation(actor Actor, reservationID int64) (*models.Reservation, error) {
	reservation, err := s.loadReservation(reservationID)
	if err != nil {
		return nil, err
	}

	if actor.IsCustomer() {
		if !ownsReservation(actor, reservation) {
			return nil, fmt.Errorf("%w: reservation belongs to another customer", ErrForbidden)
		}
		if reservation.Status != models.ReservationStatusPending {
			return nil, fmt.Errorf("%w: a customer may only cancel a pending reservation", ErrReservationImmutable)
		}
	} else {
		switch reservation.Status {
		case models.ReservationStatusPending, models.ReservationStatusConfirmed, models.ReservationStatusSeated:
			// Still cancellable.
		default:
			return nil, fmt.Errorf("%w: status is '%s'", ErrReservationImmutable, reservation.Status)
		}
	}

	reservation.Status = models.ReservationStatusCancelled
	return s.saveReservation(reservation)
}

// SeatReservation marks the party as arrived.
func (s *reservationService) SeatReservation(actor Actor, reservationID int64) (*models.Reservation, error) {
	reservation, err := s.loadReservation(reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusConfirmed {
		return nil, fmt.Errorf("%w: only a confirmed reservation can be seated (status is '%s')", ErrReservationImmutable, reservation.Status)
	}
	reservation.Status = models.ReservationStatusSeated
	return s.saveReservation(reservation)
}

// CompleteReservation closes out a seated reservation, releasing the slot.
func (s *reservationService) CompleteReservation(actor Actor, reservationID int64) (*models.Reservation, error) {
	reservation, err := s.loadReservation(reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.Status != models.ReservationStatusSeated {
		return nil, fmt.Errorf("%w: only a seated reservation can be completed (status is '%s')", ErrReservationImmutable, reservation.Status)
	}
	reservation.Status = models.ReservationStatusCompleted
	return s.saveReservation(reservation)
}

// Tables returns the restaurant's fixed table inventory.
func (s *reservationService) Tables() []string {
	tables := make([]string, len(s.tables))
	copy(tables, s.tables)
	return tables
}

// CheckAvailability returns the tables free of conflicting reservations in the
// two-hour window around the given instant.
func (s *reservationService) CheckAvailability(at time.Time) ([]string, error) {
	available := []string{}
	for _, table := range s.tables {
		count, err := s.reservationRepo.CountConflicts(table, at.Add(-conflictWindow), at.Add(conflictWindow), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to check availability for table %s: %w", table, err)
		}
		if count == 0 {
			available = append(available, table)
		}
	}
	return available, nil
}

// --- Internal helpers ---

func (s *reservationService) loadReservation(reservationID int64) (*models.Reservation, error) {
	reservation, err := s.reservationRepo.GetReservationByID(reservationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation by ID: %w", err)
	}
	return reservation, nil
}

func (s *reservationService) saveReservation(reservation *models.Reservation) (*models.Reservation, error) {
	updated, err := s.reservationRepo.UpdateReservation(s.db, reservation)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	return updated, nil
}

// ensureNoConflict rejects the slot when any active reservation holds the
// table within the conflict window around the requested time.
func (s *reservationService) ensureNoConflict(tableCode string, reservedFor time.Time, excludeID *int64) error {
	count, err := s.reservationRepo.CountConflicts(tableCode, reservedFor.Add(-conflictWindow), reservedFor.Add(conflictWindow), excludeID)
	if err != nil {
		return fmt.Errorf("failed to check reservation conflicts: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: table %s at %s", ErrReservationConflict, tableCode, reservedFor.Format(time.RFC3339))
	}
	return nil
}

func ownsReservation(actor Actor, reservation *models.Reservation) bool {
	return reservation.CustomerID != nil && *reservation.CustomerID == actor.UserID
}

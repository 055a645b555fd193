package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/services"
	"restaurant_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ReservationHandler holds the reservation service.
type ReservationHandler struct {
	reservationService services.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(rs services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: rs}
}

// respondReservationError maps reservation service errors onto API error responses.
func respondReservationError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrReservationNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Reservation not found.", err.Error()))
	case errors.Is(err, services.ErrReservationConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Table is already reserved in that time window.", err.Error()))
	case errors.Is(err, services.ErrReservationImmutable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Reservation can no longer be changed.", err.Error()))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You are not allowed to perform this action.", err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid reservation data.", err.Error()))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback, "Internal error"))
	}
}

// parseReservationID extracts the :id path parameter.
func parseReservationID(c *gin.Context) (int64, bool) {
	reservationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid reservation ID format.", err.Error()))
		return 0, false
	}
	return reservationID, true
}

// CreateReservation books a table slot.
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req services.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateReservation: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	reservation, err := h.reservationService.CreateReservation(actor, req)
	if err != nil {
		utils.LogError(err, "CreateReservation: Error from reservationService.CreateReservation")
		respondReservationError(c, err, "Failed to create reservation.")
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

// GetReservations lists reservations with filters. Customers only see their own.
func (h *ReservationHandler) GetReservations(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var filters models.ReservationFilters
	if tableCode := c.Query("table_code"); tableCode != "" {
		filters.TableCode = &tableCode
	}
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	if date := c.Query("date"); date != "" {
		filters.Date = &date
	}
	if customerIDStr := c.Query("customer_id"); customerIDStr != "" {
		customerID, err := strconv.ParseInt(customerIDStr, 10, 64)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid customer_id format.", err.Error()))
			return
		}
		filters.CustomerID = &customerID
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	filters.Page = page
	filters.PageSize = pageSize

	reservations, totalCount, err := h.reservationService.GetReservations(actor, filters)
	if err != nil {
		utils.LogError(err, "GetReservations: Error from reservationService.GetReservations")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch reservations.", "Internal error"))
		return
	}

	if reservations == nil {
		reservations = []models.Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      reservations,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetReservationByID fetches one reservation.
func (h *ReservationHandler) GetReservationByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reservationID, ok := parseReservationID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationService.GetReservationByID(actor, reservationID)
	if err != nil {
		utils.LogError(err, "GetReservationByID: Error from reservationService.GetReservationByID")
		respondReservationError(c, err, "Failed to fetch reservation.")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// UpdateReservation edits a reservation's details.
func (h *ReservationHandler) UpdateReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reservationID, ok := parseReservationID(c)
	if !ok {
		return
	}

	var req services.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateReservation: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	reservation, err := h.reservationService.UpdateReservation(actor, reservationID, req)
	if err != nil {
		utils.LogError(err, "UpdateReservation: Error from reservationService.UpdateReservation")
		respondReservationError(c, err, "Failed to update reservation.")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// ApproveReservation settles a pending customer reservation (admin).
func (h *ReservationHandler) ApproveReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reservationID, ok := parseReservationID(c)
	if !ok {
		return
	}

	var req services.ApproveReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "ApproveReservation: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	reservation, err := h.reservationService.ApproveReservation(actor, reservationID, req)
	if err != nil {
		utils.LogError(err, "ApproveReservation: Error from reservationService.ApproveReservation")
		respondReservationError(c, err, "Failed to approve reservation.")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// CancelReservation releases a reservation's table slot.
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reservationID, ok := parseReservationID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationService.CancelReservation(actor, reservationID)
	if err != nil {
		utils.LogError(err, "CancelReservation: Error from reservationService.CancelReservation")
		respondReservationError(c, err, "Failed to cancel reservation.")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// SeatReservation marks the party as arrived (staff).
func (h *ReservationHandler) SeatReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reservationID, ok := parseReservationID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationService.SeatReservation(actor, reservationID)
	if err != nil {
		utils.LogError(err, "SeatReservation: Error from reservationService.SeatReservation")
		respondReservationError(c, err, "Failed to seat reservation.")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// CompleteReservation closes out a seated reservation (staff).
func (h *ReservationHandler) CompleteReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reservationID, ok := parseReservationID(c)
	if !ok {
		return
	}

	reservation, err := h.reservationService.CompleteReservation(actor, reservationID)
	if err != nil {
		utils.LogError(err, "CompleteReservation: Error from reservationService.CompleteReservation")
		respondReservationError(c, err, "Failed to complete reservation.")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// GetTables returns the restaurant's fixed table inventory.
func (h *ReservationHandler) GetTables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": h.reservationService.Tables()})
}

// CheckAvailability returns the tables free around the requested time.
// Expects ?time= in RFC 3339 format.
func (h *ReservationHandler) CheckAvailability(c *gin.Context) {
	timeStr := c.Query("time")
	if timeStr == "" {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Missing required query parameter 'time'.", "time must be RFC 3339, e.g. 2026-03-01T19:00:00Z"))
		return
	}
	at, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid time format.", "time must be RFC 3339, e.g. 2026-03-01T19:00:00Z"))
		return
	}

	available, err := h.reservationService.CheckAvailability(at)
	if err != nil {
		utils.LogError(err, "CheckAvailability: Error from reservationService.CheckAvailability")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to check availability.", "Internal error"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"time":             at,
		"available_tables": available,
	})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/services"
	"restaurant_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// BillHandler holds the billing service.
type BillHandler struct {
	billingService services.BillingService
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(bs services.BillingService) *BillHandler {
	return &BillHandler{billingService: bs}
}

// respondBillingError maps billing service errors onto API error responses.
func respondBillingError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrBillNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Bill not found.", err.Error()))
	case errors.Is(err, services.ErrOrderNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Order not found.", err.Error()))
	case errors.Is(err, services.ErrOrderAlreadyBilled):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order has already been billed.", err.Error()))
	case errors.Is(err, services.ErrOrderNotBillable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order cannot be billed.", err.Error()))
	case errors.Is(err, services.ErrNothingToBill):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order has no billable items.", err.Error()))
	case errors.Is(err, services.ErrSplitReconciliation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Split groups do not cover the order exactly.", err.Error()))
	case errors.Is(err, services.ErrPaymentTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Illegal payment status transition.", err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request data.", err.Error()))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback, "Internal error"))
	}
}

// GenerateBill issues the single bill for an order.
func (h *BillHandler) GenerateBill(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req services.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "GenerateBill: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	bill, err := h.billingService.GenerateBill(actor, req)
	if err != nil {
		utils.LogError(err, "GenerateBill: Error from billingService.GenerateBill")
		respondBillingError(c, err, "Failed to generate bill.")
		return
	}
	c.JSON(http.StatusCreated, bill)
}

// SplitBill splits an order's billable items into several bills.
func (h *BillHandler) SplitBill(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req services.SplitBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "SplitBill: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	bills, err := h.billingService.SplitBill(actor, req)
	if err != nil {
		utils.LogError(err, "SplitBill: Error from billingService.SplitBill")
		respondBillingError(c, err, "Failed to split bill.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bills": bills})
}

// UpdatePaymentStatus settles or refunds a bill.
func (h *BillHandler) UpdatePaymentStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	idStr := c.Param("id")
	billID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid bill ID format.", err.Error()))
		return
	}

	var req services.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdatePaymentStatus: Failed to bind JSON for ID "+idStr)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	bill, err := h.billingService.UpdatePaymentStatus(actor, billID, req)
	if err != nil {
		utils.LogError(err, "UpdatePaymentStatus: Error from billingService.UpdatePaymentStatus for ID "+idStr)
		respondBillingError(c, err, "Failed to update payment status.")
		return
	}
	c.JSON(http.StatusOK, bill)
}

// GetBillByID fetches one bill with its line items.
func (h *BillHandler) GetBillByID(c *gin.Context) {
	idStr := c.Param("id")
	billID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid bill ID format.", err.Error()))
		return
	}

	bill, err := h.billingService.GetBillByID(billID)
	if err != nil {
		utils.LogError(err, "GetBillByID: Error from billingService.GetBillByID for ID "+idStr)
		respondBillingError(c, err, "Failed to fetch bill.")
		return
	}
	c.JSON(http.StatusOK, bill)
}

// GetBills handles fetching all bills with filters.
func (h *BillHandler) GetBills(c *gin.Context) {
	var filters models.BillFilters

	if orderIDStr := c.Query("order_id"); orderIDStr != "" {
		orderID, err := strconv.ParseInt(orderIDStr, 10, 64)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order_id format.", err.Error()))
			return
		}
		filters.OrderID = &orderID
	}
	if staffIDStr := c.Query("staff_id"); staffIDStr != "" {
		staffID, err := strconv.ParseInt(staffIDStr, 10, 64)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid staff_id format.", err.Error()))
			return
		}
		filters.StaffID = &staffID
	}
	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		filters.PaymentStatus = &paymentStatus
	}
	if isSplitStr := c.Query("is_split"); isSplitStr != "" {
		isSplit, err := strconv.ParseBool(isSplitStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid is_split format.", "is_split must be true or false"))
			return
		}
		filters.IsSplit = &isSplit
	}
	if date := c.Query("date"); date != "" {
		filters.Date = &date
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	filters.Page = page
	filters.PageSize = pageSize

	bills, totalCount, err := h.billingService.GetBills(filters)
	if err != nil {
		utils.LogError(err, "GetBills: Error from billingService.GetBills")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch bills.", "Internal error"))
		return
	}

	if bills == nil {
		bills = []models.Bill{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      bills,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

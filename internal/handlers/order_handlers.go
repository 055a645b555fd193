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

// OrderHandler holds the order service.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

// respondOrderError maps order service errors onto API error responses. The
// order flows share one sentinel vocabulary, so the mapping lives in one place
// instead of being repeated per handler.
func respondOrderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Order not found.", err.Error()))
	case errors.Is(err, services.ErrOrderItemNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Order item not found.", err.Error()))
	case errors.Is(err, services.ErrDishUnavailable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "One or more dishes not found or unavailable.", err.Error()))
	case errors.Is(err, services.ErrOrderNotModifiable):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order can no longer be modified.", err.Error()))
	case errors.Is(err, services.ErrItemTransition):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Illegal item status transition.", err.Error()))
	case errors.Is(err, services.ErrOrderNotReady):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Order is not ready to be completed.", err.Error()))
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "You are not allowed to perform this action.", err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request data.", err.Error()))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback, "Internal error"))
	}
}

// parseOrderAndItemIDs extracts the :id/:item_id pair from the path.
func parseOrderAndItemIDs(c *gin.Context) (orderID, itemID int64, ok bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order ID format.", err.Error()))
		return 0, 0, false
	}
	itemID, err = strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order item ID format.", err.Error()))
		return 0, 0, false
	}
	return orderID, itemID, true
}

// CreateOrder handles the creation of a new order with its items. The acting
// waiter from the JWT becomes the order's owner.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateOrder: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	createdOrder, err := h.orderService.CreateOrder(actor, req)
	if err != nil {
		utils.LogError(err, "CreateOrder: Error from orderService.CreateOrder")
		respondOrderError(c, err, "Failed to create order.")
		return
	}
	c.JSON(http.StatusCreated, createdOrder)
}

// GetOrders handles fetching all orders with filters.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters

	if staffIDStr := c.Query("staff_id"); staffIDStr != "" {
		staffID, err := strconv.ParseInt(staffIDStr, 10, 64)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid staff_id format.", err.Error()))
			return
		}
		filters.StaffID = &staffID
	}
	if tableCode := c.Query("table_code"); tableCode != "" {
		filters.TableCode = &tableCode
	}
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	if billedStr := c.Query("billed"); billedStr != "" {
		billed, err := strconv.ParseBool(billedStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid billed format.", "billed must be true or false"))
			return
		}
		filters.Billed = &billed
	}
	if date := c.Query("date"); date != "" {
		filters.Date = &date
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	filters.Page = page
	filters.PageSize = pageSize

	orders, totalCount, err := h.orderService.GetOrders(filters)
	if err != nil {
		utils.LogError(err, "GetOrders: Error from orderService.GetOrders")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch orders.", "Internal error"))
		return
	}

	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      orders,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetOrderByID handles fetching a single order by ID with its items.
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	idStr := c.Param("id")
	orderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order ID format.", err.Error()))
		return
	}

	order, err := h.orderService.GetOrderByID(orderID)
	if err != nil {
		utils.LogError(err, "GetOrderByID: Error from orderService.GetOrderByID for ID "+idStr)
		respondOrderError(c, err, "Failed to fetch order.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateItemStatus advances one order item through the kitchen workflow.
func (h *OrderHandler) UpdateItemStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, itemID, ok := parseOrderAndItemIDs(c)
	if !ok {
		return
	}

	var req services.UpdateOrderItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateItemStatus: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	order, err := h.orderService.UpdateItemStatus(actor, orderID, itemID, req)
	if err != nil {
		utils.LogError(err, "UpdateItemStatus: Error from orderService.UpdateItemStatus")
		respondOrderError(c, err, "Failed to update item status.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// RequestItemCancellation opens a cancellation request on one order item.
func (h *OrderHandler) RequestItemCancellation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, itemID, ok := parseOrderAndItemIDs(c)
	if !ok {
		return
	}

	order, err := h.orderService.RequestItemCancellation(actor, orderID, itemID)
	if err != nil {
		utils.LogError(err, "RequestItemCancellation: Error from orderService.RequestItemCancellation")
		respondOrderError(c, err, "Failed to request item cancellation.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// ResolveItemCancellation settles a pending cancellation request (admin).
func (h *OrderHandler) ResolveItemCancellation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	orderID, itemID, ok := parseOrderAndItemIDs(c)
	if !ok {
		return
	}

	var req services.ResolveCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "ResolveItemCancellation: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	order, err := h.orderService.ResolveItemCancellation(actor, orderID, itemID, req)
	if err != nil {
		utils.LogError(err, "ResolveItemCancellation: Error from orderService.ResolveItemCancellation")
		respondOrderError(c, err, "Failed to resolve item cancellation.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// CompleteOrder closes out a ready order.
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	idStr := c.Param("id")
	orderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order ID format.", err.Error()))
		return
	}

	order, err := h.orderService.CompleteOrder(actor, orderID)
	if err != nil {
		utils.LogError(err, "CompleteOrder: Error from orderService.CompleteOrder for ID "+idStr)
		respondOrderError(c, err, "Failed to complete order.")
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder cancels the whole order with all its outstanding items.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	idStr := c.Param("id")
	orderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order ID format.", err.Error()))
		return
	}

	order, err := h.orderService.CancelOrder(actor, orderID)
	if err != nil {
		utils.LogError(err, "CancelOrder: Error from orderService.CancelOrder for ID "+idStr)
		respondOrderError(c, err, "Failed to cancel order.")
		return
	}
	c.JSON(http.StatusOK, order)
}

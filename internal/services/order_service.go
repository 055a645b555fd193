package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/notifier"
	"restaurant_backend/internal/repositories"
	"restaurant_backend/pkg/utils"
)

// --- Custom Service Errors for Orders ---
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderItemNotFound  = errors.New("order item not found")
	ErrDishUnavailable    = errors.New("dish not found or not available")
	ErrOrderNotModifiable = errors.New("order can no longer be modified")
	ErrItemTransition     = errors.New("illegal order item status transition")
	ErrOrderNotReady      = errors.New("order is not ready to be completed")
)

// Cancellation-request resolution decisions.
const (
	CancellationApprove = "approve"
	CancellationReject  = "reject"
)

// --- Data Transfer Objects (DTOs) ---

// CreateOrderItemRequest is one line of a new order.
type CreateOrderItemRequest struct {
	DishID   int64   `json:"dish_id" binding:"required"`
	Quantity int     `json:"quantity" binding:"required,gt=0"`
	Notes    *string `json:"notes"`
}

// CreateOrderRequest is used for creating a new order. The acting waiter
// becomes the order's owner.
type CreateOrderRequest struct {
	TableCode     string                   `json:"table_code" binding:"required"`
	CustomerName  string                   `json:"customer_name" binding:"required"`
	CustomerPhone string                   `json:"customer_phone" binding:"required"`
	OrderItems    []CreateOrderItemRequest `json:"order_items" binding:"required,dive"`
}

// UpdateOrderItemStatusRequest moves one item through the kitchen workflow.
type UpdateOrderItemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ResolveCancellationRequest carries the admin's decision on a pending
// item-cancellation request.
type ResolveCancellationRequest struct {
	Decision string `json:"decision" binding:"required"` // approve | reject
}

// --- OrderService Interface ---
type OrderService interface {
	CreateOrder(actor Actor, req CreateOrderRequest) (*models.Order, error)
	GetOrders(filters models.OrderFilters) ([]models.Order, int, error)
	GetOrderByID(orderID int64) (*models.Order, error)
	UpdateItemStatus(actor Actor, orderID, itemID int64, req UpdateOrderItemStatusRequest) (*models.Order, error)
	RequestItemCancellation(actor Actor, orderID, itemID int64) (*models.Order, error)
	ResolveItemCancellation(actor Actor, orderID, itemID int64, req ResolveCancellationRequest) (*models.Order, error)
	CompleteOrder(actor Actor, orderID int64) (*models.Order, error)
	CancelOrder(actor Actor, orderID int64) (*models.Order, error)
}

// --- orderService Implementation ---
type orderService struct {
	orderRepo repositories.OrderRepository
	dishRepo  repositories.DishRepository
	db        *sql.DB // For managing transactions
	tables    []string
	notifier  notifier.Notifier
	clock     Clock
}

// NewOrderService creates a new instance of OrderService. tables is the
// restaurant's fixed table inventory; clock may be nil for time.Now.
func NewOrderService(
	or repositories.OrderRepository,
	dr repositories.DishRepository,
	db *sql.DB,
	tables []string,
	n notifier.Notifier,
	clock Clock,
) OrderService {
	return &orderService{
		orderRepo: or,
		dishRepo:  dr,
		db:        db,
		tables:    tables,
		notifier:  n,
		clock:     clockOrDefault(clock),
	}
}

// --- Method Implementations ---

func (s *orderService) CreateOrder(actor Actor, req CreateOrderRequest) (*models.Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer name cannot be empty", ErrValidation)
	}
	if !utils.IsValidPhoneE164(req.CustomerPhone) {
		return nil, fmt.Errorf("%w: customer phone must be in E.164 format", ErrValidation)
	}
	tableCode, ok := canonicalTable(s.tables, req.TableCode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table '%s'", ErrValidation, req.TableCode)
	}

	now := s.clock()

	// Snapshot each line against the catalog before opening the transaction.
	// Unit prices are resolved once, at order-creation time, and never change
	// afterwards regardless of later catalog edits.
	orderItemsToCreate := make([]models.OrderItem, 0, len(req.OrderItems))
	for _, itemReq := range req.OrderItems {
		if itemReq.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for dish ID %d must be at least 1", ErrValidation, itemReq.DishID)
		}
		dish, repoErr := s.dishRepo.GetDishByID(itemReq.DishID)
		if repoErr != nil {
			if errors.Is(repoErr, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: dish ID %d", ErrDishUnavailable, itemReq.DishID)
			}
			return nil, fmt.Errorf("failed to fetch dish %d: %w", itemReq.DishID, repoErr)
		}
		if !dish.IsAvailable {
			return nil, fmt.Errorf("%w: dish '%s' is currently unavailable", ErrDishUnavailable, dish.Name)
		}

		category := dish.Category
		orderItemsToCreate = append(orderItemsToCreate, models.OrderItem{
			DishID:          dish.ID,
			DishName:        dish.Name,
			DishDescription: dish.Description,
			DishCategory:    &category,
			UnitPrice:       ResolvePrice(dish, now),
			Quantity:        itemReq.Quantity,
			Status:          models.ItemStatusPending,
			Notes:           itemReq.Notes,
		})
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start database transaction: %w", err)
	}
	defer tx.Rollback()

	pendingAt := now
	order := models.Order{
		TableCode:     tableCode,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: req.CustomerPhone,
		StaffID:       actor.UserID,
		OrderedAt:     now,
		Status:        models.OrderStatusPending,
		// All items start pending; nothing is accepted yet, so the initial
		// total is zero rather than a provisional estimate.
		TotalAmount: 0,
		Billed:      false,
		PendingAt:   &pendingAt,
	}

	createdOrderID, repoErr := s.orderRepo.CreateOrder(tx, &order)
	if repoErr != nil {
		return nil, fmt.Errorf("failed to create order record: %w", repoErr)
	}

	for i := range orderItemsToCreate {
		orderItemsToCreate[i].OrderID = createdOrderID
		if _, repoErr = s.orderRepo.CreateOrderItem(tx, &orderItemsToCreate[i]); repoErr != nil {
			return nil, fmt.Errorf("failed to create order item (dish_id: %d): %w", orderItemsToCreate[i].DishID, repoErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	return s.GetOrderByID(createdOrderID)
}

func (s *orderService) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 10
	}
	orders, totalCount, err := s.orderRepo.GetOrders(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get orders: %w", err)
	}
	return orders, totalCount, nil
}

func (s *orderService) GetOrderByID(orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by ID: %w", err)
	}

	items, err := s.orderRepo.GetOrderItemsByOrderID(s.db, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items for order %d: %w", orderID, err)
	}
	order.OrderItems = items
	return order, nil
}

// UpdateItemStatus advances a single item through the kitchen workflow and
// re-derives the order's aggregate state in the same transaction. Chefs may
// target accepted, declined, preparing and ready; cancelling directly is an
// admin-only target. Entering cancellation_requested goes through
// RequestItemCancellation instead.
func (s *orderService) UpdateItemStatus(actor Actor, orderID, itemID int64, req UpdateOrderItemStatusRequest) (*models.Order, error) {
	switch req.Status {
	case models.ItemStatusAccepted, models.ItemStatusDeclined, models.ItemStatusPreparing, models.ItemStatusReady:
		// Kitchen-reachable targets.
	case models.ItemStatusCancelled:
		if !actor.IsAdmin() {
			return nil, fmt.Errorf("%w: only an admin may cancel an item directly", ErrForbidden)
		}
	default:
		return nil, fmt.Errorf("%w: '%s' is not a valid target item status", ErrValidation, req.Status)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.lockOrderWithItems(tx, orderID)
	if err != nil {
		return nil, err
	}
	if !orderMutable(order) {
		return nil, fmt.Errorf("%w: order %d is %s%s", ErrOrderNotModifiable, orderID, order.Status, billedSuffix(order))
	}

	item := order.ItemByID(itemID)
	if item == nil {
		return nil, fmt.Errorf("%w: item %d in order %d", ErrOrderItemNotFound, itemID, orderID)
	}
	if item.Status == models.ItemStatusCancellationRequested {
		return nil, fmt.Errorf("%w: item %d has an open cancellation request", ErrItemTransition, itemID)
	}
	if !legalItemTransition(item.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrItemTransition, item.Status, req.Status)
	}

	item.Status = req.Status
	item.PriorStatus = nil
	if err := s.orderRepo.UpdateOrderItemStatus(tx, item); err != nil {
		return nil, fmt.Errorf("failed to update order item: %w", err)
	}

	recomputeDerivedState(order, s.clock())
	if err := s.orderRepo.UpdateOrderDerivedState(tx, order); err != nil {
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit item status update: %w", err)
	}
	return s.GetOrderByID(orderID)
}

// RequestItemCancellation opens a two-phase cancellation on one item. Only the
// order's owning waiter or an admin may request; the item must still be in an
// accepted-lineage, pre-ready state.
func (s *orderService) RequestItemCancellation(actor Actor, orderID, itemID int64) (*models.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.lockOrderWithItems(tx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.StaffID != actor.UserID {
		return nil, fmt.Errorf("%w: only the order's waiter or an admin may request cancellation", ErrForbidden)
	}
	if !orderMutable(order) {
		return nil, fmt.Errorf("%w: order %d is %s%s", ErrOrderNotModifiable, orderID, order.Status, billedSuffix(order))
	}

	item := order.ItemByID(itemID)
	if item == nil {
		return nil, fmt.Errorf("%w: item %d in order %d", ErrOrderItemNotFound, itemID, orderID)
	}
	if !legalItemTransition(item.Status, models.ItemStatusCancellationRequested) {
		return nil, fmt.Errorf("%w: cannot request cancellation of a %s item", ErrItemTransition, item.Status)
	}

	prior := item.Status
	item.PriorStatus = &prior
	item.Status = models.ItemStatusCancellationRequested
	if err := s.orderRepo.UpdateOrderItemStatus(tx, item); err != nil {
		return nil, fmt.Errorf("failed to update order item: %w", err)
	}

	// An item under an open request already stops counting toward the total.
	recomputeDerivedState(order, s.clock())
	if err := s.orderRepo.UpdateOrderDerivedState(tx, order); err != nil {
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation request: %w", err)
	}
	return s.GetOrderByID(orderID)
}

// ResolveItemCancellation closes a pending cancellation request. Approval
// cancels the item; rejection restores the status recorded when the request
// was opened. Either way the customer is notified best-effort after commit.
func (s *orderService) ResolveItemCancellation(actor Actor, orderID, itemID int64, req ResolveCancellationRequest) (*models.Order, error) {
	if req.Decision != CancellationApprove && req.Decision != CancellationReject {
		return nil, fmt.Errorf("%w: decision must be '%s' or '%s'", ErrValidation, CancellationApprove, CancellationReject)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.lockOrderWithItems(tx, orderID)
	if err != nil {
		return nil, err
	}
	if !orderMutable(order) {
		return nil, fmt.Errorf("%w: order %d is %s%s", ErrOrderNotModifiable, orderID, order.Status, billedSuffix(order))
	}

	item := order.ItemByID(itemID)
	if item == nil {
		return nil, fmt.Errorf("%w: item %d in order %d", ErrOrderItemNotFound, itemID, orderID)
	}
	if item.Status != models.ItemStatusCancellationRequested {
		return nil, fmt.Errorf("%w: item %d has no cancellation request pending", ErrItemTransition, itemID)
	}

	var message string
	if req.Decision == CancellationApprove {
		item.Status = models.ItemStatusCancelled
		message = fmt.Sprintf("Dear %s, your request to cancel %s (x%d) has been approved and the item was removed from your order.",
			order.CustomerName, item.DishName, item.Quantity)
	} else {
		restored := models.ItemStatusAccepted
		if item.PriorStatus != nil {
			restored = *item.PriorStatus
		}
		item.Status = restored
		message = fmt.Sprintf("Dear %s, your request to cancel %s (x%d) was declined; the item stays on your order.",
			order.CustomerName, item.DishName, item.Quantity)
	}
	item.PriorStatus = nil

	if err := s.orderRepo.UpdateOrderItemStatus(tx, item); err != nil {
		return nil, fmt.Errorf("failed to update order item: %w", err)
	}

	recomputeDerivedState(order, s.clock())
	if err := s.orderRepo.UpdateOrderDerivedState(tx, order); err != nil {
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation resolution: %w", err)
	}

	// Best-effort only. The notifier logs failures; the state change above is
	// already committed and never unwound.
	if s.notifier != nil {
		s.notifier.Send(order.CustomerPhone, message)
	}

	return s.GetOrderByID(orderID)
}

// CompleteOrder is the explicit staff action that closes out a ready order.
func (s *orderService) CompleteOrder(actor Actor, orderID int64) (*models.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.orderRepo.GetOrderForUpdate(tx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order.Status != models.OrderStatusReady {
		return nil, fmt.Errorf("%w: current status is '%s'", ErrOrderNotReady, order.Status)
	}

	order.Status = models.OrderStatusCompleted
	if order.CompletedAt == nil {
		now := s.clock()
		order.CompletedAt = &now
	}
	if err := s.orderRepo.UpdateOrderDerivedState(tx, order); err != nil {
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order completion: %w", err)
	}
	return s.GetOrderByID(orderID)
}

// CancelOrder cancels the whole order, cascading to every item that is not
// already declined or cancelled. The per-item machine is bypassed here: the
// cascade also takes pending and ready items with it.
func (s *orderService) CancelOrder(actor Actor, orderID int64) (*models.Order, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.lockOrderWithItems(tx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.StaffID != actor.UserID {
		return nil, fmt.Errorf("%w: only the order's waiter or an admin may cancel the order", ErrForbidden)
	}
	if !orderMutable(order) {
		return nil, fmt.Errorf("%w: order %d is %s%s", ErrOrderNotModifiable, orderID, order.Status, billedSuffix(order))
	}

	for i := range order.OrderItems {
		item := &order.OrderItems[i]
		if item.Status == models.ItemStatusDeclined || item.Status == models.ItemStatusCancelled {
			continue
		}
		item.Status = models.ItemStatusCancelled
		item.PriorStatus = nil
		if err := s.orderRepo.UpdateOrderItemStatus(tx, item); err != nil {
			return nil, fmt.Errorf("failed to cancel order item %d: %w", item.ID, err)
		}
	}

	recomputeDerivedState(order, s.clock())
	order.Status = models.OrderStatusCancelled
	if err := s.orderRepo.UpdateOrderDerivedState(tx, order); err != nil {
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order cancellation: %w", err)
	}
	return s.GetOrderByID(orderID)
}

// lockOrderWithItems reads the order row FOR UPDATE and loads its items inside
// the same transaction.
func (s *orderService) lockOrderWithItems(tx *sql.Tx, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderForUpdate(tx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	items, err := s.orderRepo.GetOrderItemsByOrderID(tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	order.OrderItems = items
	return order, nil
}

func billedSuffix(order *models.Order) string {
	if order.Billed {
		return " and billed"
	}
	return ""
}

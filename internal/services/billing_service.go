package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/notifier"
	"restaurant_backend/internal/repositories"
)

// --- Custom Service Errors for Billing ---
var (
	ErrBillNotFound        = errors.New("bill not found")
	ErrOrderAlreadyBilled  = errors.New("order has already been billed")
	ErrOrderNotBillable    = errors.New("order cannot be billed")
	ErrNothingToBill       = errors.New("order has no billable items")
	ErrSplitReconciliation = errors.New("split groups do not reconcile against the order")
	ErrPaymentTransition   = errors.New("illegal payment status transition")
)

// --- Data Transfer Objects (DTOs) ---

// GenerateBillRequest creates a single bill covering the whole order.
type GenerateBillRequest struct {
	OrderID int64 `json:"order_id" binding:"required"`
}

// SplitGroupItemRequest assigns a quantity of one dish to a split group.
type SplitGroupItemRequest struct {
	DishID   int64 `json:"dish_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,gt=0"`
}

// SplitGroupRequest describes one bill of a split. CustomerName falls back to
// the order's customer when omitted.
type SplitGroupRequest struct {
	CustomerName *string                 `json:"customer_name"`
	Items        []SplitGroupItemRequest `json:"items" binding:"required,dive"`
}

// SplitBillRequest splits an order's billable items across several bills.
type SplitBillRequest struct {
	OrderID int64               `json:"order_id" binding:"required"`
	Groups  []SplitGroupRequest `json:"groups" binding:"required,min=2,dive"`
}

// UpdatePaymentStatusRequest settles or refunds a bill.
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// --- BillingService Interface ---
type BillingService interface {
	GenerateBill(actor Actor, req GenerateBillRequest) (*models.Bill, error)
	SplitBill(actor Actor, req SplitBillRequest) ([]models.Bill, error)
	UpdatePaymentStatus(actor Actor, billID int64, req UpdatePaymentStatusRequest) (*models.Bill, error)
	GetBillByID(billID int64) (*models.Bill, error)
	GetBills(filters models.BillFilters) ([]models.Bill, int, error)
}

// --- billingService Implementation ---
type billingService struct {
	billRepo  repositories.BillRepository
	orderRepo repositories.OrderRepository
	dishRepo  repositories.DishRepository
	db        *sql.DB // For managing transactions
	notifier  notifier.Notifier
	clock     Clock
}

// NewBillingService creates a new instance of BillingService.
func NewBillingService(
	br repositories.BillRepository,
	or repositories.OrderRepository,
	dr repositories.DishRepository,
	db *sql.DB,
	n notifier.Notifier,
	clock Clock,
) BillingService {
	return &billingService{
		billRepo:  br,
		orderRepo: or,
		dishRepo:  dr,
		db:        db,
		notifier:  n,
		clock:     clockOrDefault(clock),
	}
}

// billableLine is one dish's billable remainder while carving up an order.
type billableLine struct {
	dishName  string
	remaining int
	unitPrice float64 // current price when resolvable, else the order-time snapshot
}

// --- Method Implementations ---

// GenerateBill issues the single bill for an order and closes the order out.
// Prices are re-resolved against the catalog at billing time; if a dish has
// been deleted since the order was taken, the order-time snapshot price is
// used instead.
func (s *billingService) GenerateBill(actor Actor, req GenerateBillRequest) (*models.Bill, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.lockBillableOrder(tx, req.OrderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.billableLines(order)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order %d", ErrNothingToBill, order.ID)
	}

	bill := models.Bill{
		OrderID:       order.ID,
		StaffID:       actor.UserID,
		PaymentStatus: models.PaymentStatusPending,
		IsSplit:       false,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		TableCode:     order.TableCode,
	}
	var billItems []models.BillItem
	for _, item := range order.OrderItems {
		line, ok := lines[item.ID]
		if !ok {
			continue
		}
		bill.TotalAmount += float64(item.Quantity) * line.unitPrice
		billItems = append(billItems, models.BillItem{
			DishID:    item.DishID,
			DishName:  item.DishName,
			Quantity:  item.Quantity,
			UnitPrice: line.unitPrice,
		})
	}
	bill.OrderTotal = bill.TotalAmount

	billID, err := s.billRepo.CreateBill(tx, &bill)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: order %d", ErrOrderAlreadyBilled, order.ID)
		}
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}
	for i := range billItems {
		billItems[i].BillID = billID
		if _, err := s.billRepo.CreateBillItem(tx, &billItems[i]); err != nil {
			return nil, fmt.Errorf("failed to create bill item: %w", err)
		}
	}

	if err := s.closeOutBilledOrder(tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bill generation: %w", err)
	}
	return s.GetBillByID(billID)
}

// SplitBill carves the order's billable items into two or more bills. Every
// group is validated and priced before any row is written; either the whole
// split lands or none of it does.
func (s *billingService) SplitBill(actor Actor, req SplitBillRequest) ([]models.Bill, error) {
	if len(req.Groups) < 2 {
		return nil, fmt.Errorf("%w: a split requires at least two groups", ErrValidation)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.lockBillableOrder(tx, req.OrderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.billableLines(order)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order %d", ErrNothingToBill, order.ID)
	}

	// Pool the billable remainder per dish. Split groups claim by dish, not by
	// order-item row, so identical dishes across rows are interchangeable.
	type dishPool struct {
		dishName  string
		remaining int
		unitPrice float64
	}
	pool := make(map[int64]*dishPool)
	var orderTotal float64
	for _, item := range order.OrderItems {
		line, ok := lines[item.ID]
		if !ok {
			continue
		}
		orderTotal += float64(item.Quantity) * line.unitPrice
		if p, exists := pool[item.DishID]; exists {
			p.remaining += item.Quantity
		} else {
			pool[item.DishID] = &dishPool{dishName: line.dishName, remaining: item.Quantity, unitPrice: line.unitPrice}
		}
	}

	// First pass: validate and price every group against the pool. Nothing is
	// written until all groups reconcile.
	type pendingBill struct {
		customerName string
		total        float64
		items        []models.BillItem
	}
	pendingBills := make([]pendingBill, 0, len(req.Groups))
	for gi, group := range req.Groups {
		if len(group.Items) == 0 {
			return nil, fmt.Errorf("%w: split group %d has no items", ErrValidation, gi+1)
		}
		seen := make(map[int64]bool)
		pb := pendingBill{customerName: order.CustomerName}
		if group.CustomerName != nil && strings.TrimSpace(*group.CustomerName) != "" {
			pb.customerName = strings.TrimSpace(*group.CustomerName)
		}
		for _, gItem := range group.Items {
			if gItem.Quantity < 1 {
				return nil, fmt.Errorf("%w: quantity for dish %d in group %d must be at least 1", ErrValidation, gItem.DishID, gi+1)
			}
			if seen[gItem.DishID] {
				return nil, fmt.Errorf("%w: dish %d listed twice in group %d", ErrValidation, gItem.DishID, gi+1)
			}
			seen[gItem.DishID] = true

			p, ok := pool[gItem.DishID]
			if !ok {
				return nil, fmt.Errorf("%w: dish %d is not billable on order %d", ErrValidation, gItem.DishID, order.ID)
			}
			if gItem.Quantity > p.remaining {
				return nil, fmt.Errorf("%w: group %d claims %d of '%s' but only %d remain",
					ErrSplitReconciliation, gi+1, gItem.Quantity, p.dishName, p.remaining)
			}
			p.remaining -= gItem.Quantity
			pb.total += float64(gItem.Quantity) * p.unitPrice
			pb.items = append(pb.items, models.BillItem{
				DishID:    gItem.DishID,
				DishName:  p.dishName,
				Quantity:  gItem.Quantity,
				UnitPrice: p.unitPrice,
			})
		}
		pendingBills = append(pendingBills, pb)
	}
	for _, p := range pool {
		if p.remaining > 0 {
			return nil, fmt.Errorf("%w: %d of '%s' left unassigned", ErrSplitReconciliation, p.remaining, p.dishName)
		}
	}

	splitGroupID, err := s.billRepo.NextSplitGroupID(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate split group ID: %w", err)
	}

	billIDs := make([]int64, 0, len(pendingBills))
	for _, pb := range pendingBills {
		bill := models.Bill{
			OrderID:       order.ID,
			StaffID:       actor.UserID,
			TotalAmount:   pb.total,
			PaymentStatus: models.PaymentStatusPending,
			IsSplit:       true,
			SplitGroupID:  &splitGroupID,
			CustomerName:  pb.customerName,
			CustomerPhone: order.CustomerPhone,
			TableCode:     order.TableCode,
			OrderTotal:    orderTotal,
		}
		billID, err := s.billRepo.CreateBill(tx, &bill)
		if err != nil {
			return nil, fmt.Errorf("failed to create split bill: %w", err)
		}
		for i := range pb.items {
			pb.items[i].BillID = billID
			if _, err := s.billRepo.CreateBillItem(tx, &pb.items[i]); err != nil {
				return nil, fmt.Errorf("failed to create split bill item: %w", err)
			}
		}
		billIDs = append(billIDs, billID)
	}

	if err := s.closeOutBilledOrder(tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bill split: %w", err)
	}

	bills := make([]models.Bill, 0, len(billIDs))
	for _, id := range billIDs {
		bill, err := s.GetBillByID(id)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *bill)
	}
	return bills, nil
}

// UpdatePaymentStatus moves a bill from pending to paid or refunded. Settled
// bills are final in both directions. A paid settlement sends the customer an
// itemized receipt after commit.
func (s *billingService) UpdatePaymentStatus(actor Actor, billID int64, req UpdatePaymentStatusRequest) (*models.Bill, error) {
	if !models.IsValidPaymentStatus(req.PaymentStatus) {
		return nil, fmt.Errorf("%w: '%s' is not a valid payment status", ErrValidation, req.PaymentStatus)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	bill, err := s.billRepo.GetBillForUpdate(tx, billID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("failed to lock bill: %w", err)
	}
	if bill.PaymentStatus != models.PaymentStatusPending || req.PaymentStatus == models.PaymentStatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrPaymentTransition, bill.PaymentStatus, req.PaymentStatus)
	}

	now := s.clock()
	if err := s.billRepo.UpdateBillPaymentStatus(tx, billID, req.PaymentStatus, now); err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment status update: %w", err)
	}

	if req.PaymentStatus == models.PaymentStatusPaid && s.notifier != nil {
		items, itemsErr := s.billRepo.GetBillItemsByBillID(billID)
		if itemsErr == nil {
			s.notifier.Send(bill.CustomerPhone, buildPaymentReceiptMessage(bill, items))
		}
	}

	return s.GetBillByID(billID)
}

func (s *billingService) GetBillByID(billID int64) (*models.Bill, error) {
	bill, err := s.billRepo.GetBillByID(billID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("failed to get bill by ID: %w", err)
	}
	items, err := s.billRepo.GetBillItemsByBillID(billID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bill items for bill %d: %w", billID, err)
	}
	bill.BillItems = items
	return bill, nil
}

func (s *billingService) GetBills(filters models.BillFilters) ([]models.Bill, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 10
	}
	bills, totalCount, err := s.billRepo.GetBills(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get bills: %w", err)
	}
	return bills, totalCount, nil
}

// --- Internal helpers ---

// lockBillableOrder locks the order row, loads its items and rejects orders
// that cannot take a bill.
func (s *billingService) lockBillableOrder(tx *sql.Tx, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderForUpdate(tx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order.Billed {
		return nil, fmt.Errorf("%w: order %d", ErrOrderAlreadyBilled, order.ID)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order %d is cancelled", ErrOrderNotBillable, order.ID)
	}

	items, err := s.orderRepo.GetOrderItemsByOrderID(tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	order.OrderItems = items
	return order, nil
}

// billableLines resolves the billing price for every accepted-lineage item,
// keyed by order-item ID. Items whose dish has since been deleted keep their
// order-time snapshot price.
func (s *billingService) billableLines(order *models.Order) (map[int64]billableLine, error) {
	now := s.clock()
	priceByDish := make(map[int64]float64)
	lines := make(map[int64]billableLine)
	for _, item := range order.OrderItems {
		if !models.IsAcceptedLineage(item.Status) {
			continue
		}
		price, cached := priceByDish[item.DishID]
		if !cached {
			dish, err := s.dishRepo.GetDishByID(item.DishID)
			switch {
			case err == nil:
				price = ResolvePrice(dish, now)
			case errors.Is(err, repositories.ErrNotFound):
				price = item.UnitPrice
			default:
				return nil, fmt.Errorf("failed to fetch dish %d for billing: %w", item.DishID, err)
			}
			priceByDish[item.DishID] = price
		}
		lines[item.ID] = billableLine{dishName: item.DishName, remaining: item.Quantity, unitPrice: price}
	}
	return lines, nil
}

// closeOutBilledOrder marks the order billed and completed in the same
// transaction as its bills.
func (s *billingService) closeOutBilledOrder(tx *sql.Tx, order *models.Order) error {
	order.Billed = true
	order.Status = models.OrderStatusCompleted
	if order.CompletedAt == nil {
		now := s.clock()
		order.CompletedAt = &now
	}
	if err := s.orderRepo.UpdateOrderDerivedState(tx, order); err != nil {
		return fmt.Errorf("failed to close out billed order: %w", err)
	}
	return nil
}

// buildPaymentReceiptMessage formats the itemized confirmation sent when a
// bill settles as paid.
func buildPaymentReceiptMessage(bill *models.Bill, items []models.BillItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s, thank you for your payment of Rs.%.2f.", bill.CustomerName, bill.TotalAmount)
	if len(items) > 0 {
		b.WriteString(" Your bill:")
		for _, item := range items {
			fmt.Fprintf(&b, " %dx %s @ Rs.%.2f;", item.Quantity, item.DishName, item.UnitPrice)
		}
		fmt.Fprintf(&b, " total Rs.%.2f.", bill.TotalAmount)
	}
	return b.String()
}

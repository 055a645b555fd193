package services

import (
	"testing"
	"time"

	"restaurant_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderServiceFixture struct {
	svc      OrderService
	orders   *fakeOrderRepo
	dishes   *fakeDishRepo
	notifier *fakeNotifier
	now      time.Time
}

func newOrderServiceFixture(t *testing.T) *orderServiceFixture {
	t.Helper()
	f := &orderServiceFixture{
		orders:   newFakeOrderRepo(),
		dishes:   newFakeDishRepo(),
		notifier: &fakeNotifier{},
		now:      time.Date(2025, time.April, 5, 19, 0, 0, 0, time.UTC),
	}
	f.svc = NewOrderService(f.orders, f.dishes, newStubDB(t), []string{"T1", "T2", "T3"}, f.notifier, clockAt(f.now))
	return f
}

func (f *orderServiceFixture) seedMenu() (lasagna, tea models.Dish) {
	lasagna = f.dishes.add(models.Dish{Name: "Beef Lasagna", Price: 12.00, Category: "mains", IsAvailable: true})
	tea = f.dishes.add(models.Dish{Name: "Mint Tea", Price: 4.00, Category: "drinks", IsAvailable: true})
	return lasagna, tea
}

func (f *orderServiceFixture) createOrder(t *testing.T, actor Actor, items ...CreateOrderItemRequest) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(actor, CreateOrderRequest{
		TableCode:     "T1",
		CustomerName:  "Alice Smith",
		CustomerPhone: "+35799123456",
		OrderItems:    items,
	})
	require.NoError(t, err)
	return order
}

func (f *orderServiceFixture) setItemStatus(t *testing.T, actor Actor, orderID, itemID int64, status string) *models.Order {
	t.Helper()
	order, err := f.svc.UpdateItemStatus(actor, orderID, itemID, UpdateOrderItemStatusRequest{Status: status})
	require.NoError(t, err)
	return order
}

func TestCreateOrderSnapshotsCatalog(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, _ := f.seedMenu()
	special := f.dishes.add(models.Dish{
		Name:         "Catch of the Day",
		Price:        21.00,
		Category:     "mains",
		IsAvailable:  true,
		IsSpecial:    true,
		SpecialPrice: float64Ptr(16.50),
		SpecialFrom:  timePtr(f.now.Add(-time.Hour)),
		SpecialUntil: timePtr(f.now.Add(time.Hour)),
	})

	order, err := f.svc.CreateOrder(waiterActor, CreateOrderRequest{
		TableCode:     "t1", // normalized against the table inventory
		CustomerName:  "  Alice Smith  ",
		CustomerPhone: "+35799123456",
		OrderItems: []CreateOrderItemRequest{
			{DishID: lasagna.ID, Quantity: 2, Notes: strPtr("no cheese")},
			{DishID: special.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "T1", order.TableCode)
	assert.Equal(t, "Alice Smith", order.CustomerName)
	assert.Equal(t, waiterActor.UserID, order.StaffID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.False(t, order.Billed)
	// Nothing is accepted yet, so the running total starts at zero.
	assert.Equal(t, 0.0, order.TotalAmount)
	require.NotNil(t, order.PendingAt)
	assert.Equal(t, f.now, order.OrderedAt)

	require.Len(t, order.OrderItems, 2)
	first := order.OrderItems[0]
	assert.Equal(t, "Beef Lasagna", first.DishName)
	assert.Equal(t, 12.00, first.UnitPrice)
	assert.Equal(t, models.ItemStatusPending, first.Status)
	require.NotNil(t, first.DishCategory)
	assert.Equal(t, "mains", *first.DishCategory)
	require.NotNil(t, first.Notes)
	assert.Equal(t, "no cheese", *first.Notes)

	// The running special is priced at its discounted rate.
	assert.Equal(t, 16.50, order.OrderItems[1].UnitPrice)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, _ := f.seedMenu()
	unavailable := f.dishes.add(models.Dish{Name: "Oyster Platter", Price: 30.00, Category: "starters", IsAvailable: false})

	valid := CreateOrderRequest{
		TableCode:     "T1",
		CustomerName:  "Alice Smith",
		CustomerPhone: "+35799123456",
		OrderItems:    []CreateOrderItemRequest{{DishID: lasagna.ID, Quantity: 1}},
	}

	tests := []struct {
		name    string
		mutate  func(req *CreateOrderRequest)
		wantErr error
	}{
		{
			name:    "no items",
			mutate:  func(req *CreateOrderRequest) { req.OrderItems = nil },
			wantErr: ErrValidation,
		},
		{
			name:    "blank customer name",
			mutate:  func(req *CreateOrderRequest) { req.CustomerName = "   " },
			wantErr: ErrValidation,
		},
		{
			name:    "phone not E.164",
			mutate:  func(req *CreateOrderRequest) { req.CustomerPhone = "555-0199" },
			wantErr: ErrValidation,
		},
		{
			name:    "unknown table",
			mutate:  func(req *CreateOrderRequest) { req.TableCode = "T9" },
			wantErr: ErrValidation,
		},
		{
			name:    "zero quantity",
			mutate:  func(req *CreateOrderRequest) { req.OrderItems[0].Quantity = 0 },
			wantErr: ErrValidation,
		},
		{
			name:    "unknown dish",
			mutate:  func(req *CreateOrderRequest) { req.OrderItems[0].DishID = 404 },
			wantErr: ErrDishUnavailable,
		},
		{
			name:    "dish is 86ed",
			mutate:  func(req *CreateOrderRequest) { req.OrderItems[0].DishID = unavailable.ID },
			wantErr: ErrDishUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.OrderItems = []CreateOrderItemRequest{valid.OrderItems[0]}
			tt.mutate(&req)
			_, err := f.svc.CreateOrder(waiterActor, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateItemStatusDrivesOrderLifecycle(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, tea := f.seedMenu()
	order := f.createOrder(t, waiterActor,
		CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 2},
		CreateOrderItemRequest{DishID: tea.ID, Quantity: 2},
	)
	lasagnaID := order.OrderItems[0].ID
	teaID := order.OrderItems[1].ID

	// Accepting one item counts it, but a pending sibling keeps the order pending.
	order = f.setItemStatus(t, chefActor, order.ID, lasagnaID, models.ItemStatusAccepted)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 24.0, order.TotalAmount)

	order = f.setItemStatus(t, chefActor, order.ID, teaID, models.ItemStatusAccepted)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Equal(t, 32.0, order.TotalAmount)
	require.NotNil(t, order.PreparingAt)
	assert.Equal(t, f.now, *order.PreparingAt)

	order = f.setItemStatus(t, chefActor, order.ID, lasagnaID, models.ItemStatusPreparing)
	assert.Equal(t, models.OrderStatusPreparing, order.Status)

	order = f.setItemStatus(t, chefActor, order.ID, lasagnaID, models.ItemStatusReady)
	// One item ready, one still only accepted: not ready yet.
	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Nil(t, order.ReadyAt)

	order = f.setItemStatus(t, chefActor, order.ID, teaID, models.ItemStatusReady)
	assert.Equal(t, models.OrderStatusReady, order.Status)
	require.NotNil(t, order.ReadyAt)

	order, err := f.svc.CompleteOrder(waiterActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)
	assert.Equal(t, f.now, *order.CompletedAt)
	assert.Equal(t, 32.0, order.TotalAmount)
}

func TestUpdateItemStatusGuards(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, _ := f.seedMenu()
	order := f.createOrder(t, waiterActor, CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 1})
	itemID := order.OrderItems[0].ID

	t.Run("direct cancel is admin only", func(t *testing.T) {
		_, err := f.svc.UpdateItemStatus(chefActor, order.ID, itemID, UpdateOrderItemStatusRequest{Status: models.ItemStatusCancelled})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown target status", func(t *testing.T) {
		_, err := f.svc.UpdateItemStatus(chefActor, order.ID, itemID, UpdateOrderItemStatusRequest{Status: "vaporized"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("illegal transition", func(t *testing.T) {
		_, err := f.svc.UpdateItemStatus(chefActor, order.ID, itemID, UpdateOrderItemStatusRequest{Status: models.ItemStatusReady})
		assert.ErrorIs(t, err, ErrItemTransition)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := f.svc.UpdateItemStatus(chefActor, order.ID, 404, UpdateOrderItemStatusRequest{Status: models.ItemStatusAccepted})
		assert.ErrorIs(t, err, ErrOrderItemNotFound)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.svc.UpdateItemStatus(chefActor, 404, itemID, UpdateOrderItemStatusRequest{Status: models.ItemStatusAccepted})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("billed orders are frozen", func(t *testing.T) {
		stored := f.orders.orders[order.ID]
		stored.Billed = true
		f.orders.orders[order.ID] = stored

		_, err := f.svc.UpdateItemStatus(chefActor, order.ID, itemID, UpdateOrderItemStatusRequest{Status: models.ItemStatusAccepted})
		assert.ErrorIs(t, err, ErrOrderNotModifiable)
		assert.Contains(t, err.Error(), "and billed")

		stored.Billed = false
		f.orders.orders[order.ID] = stored
	})

	t.Run("completed orders are frozen", func(t *testing.T) {
		f.setItemStatus(t, chefActor, order.ID, itemID, models.ItemStatusAccepted)
		f.setItemStatus(t, chefActor, order.ID, itemID, models.ItemStatusReady)
		_, err := f.svc.CompleteOrder(waiterActor, order.ID)
		require.NoError(t, err)

		_, err = f.svc.UpdateItemStatus(adminActor, order.ID, itemID, UpdateOrderItemStatusRequest{Status: models.ItemStatusCancelled})
		assert.ErrorIs(t, err, ErrOrderNotModifiable)
	})
}

func TestItemCancellationApproved(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, tea := f.seedMenu()
	order := f.createOrder(t, waiterActor,
		CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 2},
		CreateOrderItemRequest{DishID: tea.ID, Quantity: 1},
	)
	lasagnaID := order.OrderItems[0].ID
	teaID := order.OrderItems[1].ID
	f.setItemStatus(t, chefActor, order.ID, lasagnaID, models.ItemStatusAccepted)
	f.setItemStatus(t, chefActor, order.ID, teaID, models.ItemStatusAccepted)
	f.setItemStatus(t, chefActor, order.ID, lasagnaID, models.ItemStatusPreparing)

	// Only the owning waiter or an admin may open a request.
	otherWaiter := Actor{UserID: 99, Role: models.RoleWaiter}
	_, err := f.svc.RequestItemCancellation(otherWaiter, order.ID, lasagnaID)
	assert.ErrorIs(t, err, ErrForbidden)

	order, err = f.svc.RequestItemCancellation(waiterActor, order.ID, lasagnaID)
	require.NoError(t, err)
	item := order.ItemByID(lasagnaID)
	require.NotNil(t, item)
	assert.Equal(t, models.ItemStatusCancellationRequested, item.Status)
	// The disputed item stops counting toward the total immediately.
	assert.Equal(t, 4.0, order.TotalAmount)

	// The kitchen cannot touch an item under an open request.
	_, err = f.svc.UpdateItemStatus(chefActor, order.ID, lasagnaID, UpdateOrderItemStatusRequest{Status: models.ItemStatusReady})
	assert.ErrorIs(t, err, ErrItemTransition)

	order, err = f.svc.ResolveItemCancellation(adminActor, order.ID, lasagnaID, ResolveCancellationRequest{Decision: CancellationApprove})
	require.NoError(t, err)
	item = order.ItemByID(lasagnaID)
	require.NotNil(t, item)
	assert.Equal(t, models.ItemStatusCancelled, item.Status)
	assert.Equal(t, 4.0, order.TotalAmount)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "+35799123456", f.notifier.sent[0].phone)
	assert.Equal(t,
		"Dear Alice Smith, your request to cancel Beef Lasagna (x2) has been approved and the item was removed from your order.",
		f.notifier.sent[0].message)
}

func TestItemCancellationRejected(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, _ := f.seedMenu()
	order := f.createOrder(t, waiterActor, CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 1})
	itemID := order.OrderItems[0].ID
	f.setItemStatus(t, chefActor, order.ID, itemID, models.ItemStatusAccepted)
	f.setItemStatus(t, chefActor, order.ID, itemID, models.ItemStatusPreparing)

	_, err := f.svc.RequestItemCancellation(waiterActor, order.ID, itemID)
	require.NoError(t, err)

	order, err = f.svc.ResolveItemCancellation(adminActor, order.ID, itemID, ResolveCancellationRequest{Decision: CancellationReject})
	require.NoError(t, err)
	item := order.ItemByID(itemID)
	require.NotNil(t, item)
	// Rejection restores the status the item held when the request was opened.
	assert.Equal(t, models.ItemStatusPreparing, item.Status)
	assert.Equal(t, 12.0, order.TotalAmount)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t,
		"Dear Alice Smith, your request to cancel Beef Lasagna (x1) was declined; the item stays on your order.",
		f.notifier.sent[0].message)

	// The stored prior status is consumed by the resolution.
	assert.Nil(t, f.orders.items[itemID].PriorStatus)
}

func TestItemCancellationGuards(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, _ := f.seedMenu()
	order := f.createOrder(t, waiterActor, CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 1})
	itemID := order.OrderItems[0].ID

	// A pending item has not been accepted, so there is nothing to cancel yet.
	_, err := f.svc.RequestItemCancellation(waiterActor, order.ID, itemID)
	assert.ErrorIs(t, err, ErrItemTransition)

	_, err = f.svc.ResolveItemCancellation(adminActor, order.ID, itemID, ResolveCancellationRequest{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ResolveItemCancellation(adminActor, order.ID, itemID, ResolveCancellationRequest{Decision: CancellationApprove})
	assert.ErrorIs(t, err, ErrItemTransition)

	// Admins may open requests on orders they do not own.
	f.setItemStatus(t, chefActor, order.ID, itemID, models.ItemStatusAccepted)
	_, err = f.svc.RequestItemCancellation(adminActor, order.ID, itemID)
	assert.NoError(t, err)
}

func TestCompleteOrderRequiresReady(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, _ := f.seedMenu()
	order := f.createOrder(t, waiterActor, CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 1})

	_, err := f.svc.CompleteOrder(waiterActor, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotReady)
	assert.Contains(t, err.Error(), "'pending'")

	_, err = f.svc.CompleteOrder(waiterActor, 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrderCascades(t *testing.T) {
	f := newOrderServiceFixture(t)
	lasagna, tea := f.seedMenu()
	order := f.createOrder(t, waiterActor,
		CreateOrderItemRequest{DishID: lasagna.ID, Quantity: 1},
		CreateOrderItemRequest{DishID: tea.ID, Quantity: 1},
		CreateOrderItemRequest{DishID: tea.ID, Quantity: 3},
	)
	acceptedID := order.OrderItems[0].ID
	declinedID := order.OrderItems[1].ID
	pendingID := order.OrderItems[2].ID
	f.setItemStatus(t, chefActor, order.ID, acceptedID, models.ItemStatusAccepted)
	f.setItemStatus(t, chefActor, order.ID, declinedID, models.ItemStatusDeclined)

	otherWaiter := Actor{UserID: 99, Role: models.RoleWaiter}
	_, err := f.svc.CancelOrder(otherWaiter, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	order, err = f.svc.CancelOrder(waiterActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, 0.0, order.TotalAmount)
	assert.Equal(t, models.ItemStatusCancelled, order.ItemByID(acceptedID).Status)
	assert.Equal(t, models.ItemStatusDeclined, order.ItemByID(declinedID).Status)
	assert.Equal(t, models.ItemStatusCancelled, order.ItemByID(pendingID).Status)

	// Cancelled orders accept no further work.
	_, err = f.svc.CancelOrder(waiterActor, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotModifiable)
}

package services

import (
	"database/sql"
	"sort"
	"testing"
	"time"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/repositories"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// In-memory repository fakes for service tests. They ignore the executor
// argument: transaction control still runs against a stub *sql.DB (see
// newStubDB), while the data itself lives in plain maps.

var (
	_ repositories.DishRepository        = (*fakeDishRepo)(nil)
	_ repositories.OrderRepository       = (*fakeOrderRepo)(nil)
	_ repositories.BillRepository        = (*fakeBillRepo)(nil)
	_ repositories.UserRepository        = (*fakeUserRepo)(nil)
	_ repositories.ReservationRepository = (*fakeReservationRepo)(nil)
)

// newStubDB returns a database handle whose driver accepts any sequence of
// Begin/Commit/Rollback calls. The services only use the handle for
// transaction control; every query goes through the repository fakes.
func newStubDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 64; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	mock.ExpectClose()
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// clockAt pins a service clock to a fixed instant.
func clockAt(at time.Time) Clock {
	return func() time.Time { return at }
}

// Pointer literal helpers for request structs and filters.

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func int64Ptr(i int64) *int64 { return &i }

func float64Ptr(v float64) *float64 { return &v }

func boolPtr(b bool) *bool { return &b }

func timePtr(at time.Time) *time.Time { return &at }

// Shared identities for service calls.
var (
	adminActor    = Actor{UserID: 1, Role: models.RoleAdmin}
	chefActor     = Actor{UserID: 2, Role: models.RoleChef}
	waiterActor   = Actor{UserID: 3, Role: models.RoleWaiter}
	customerActor = Actor{UserID: 4, Role: models.RoleCustomer}
)

type sentMessage struct {
	phone   string
	message string
}

// fakeNotifier records every message instead of calling a gateway.
type fakeNotifier struct {
	sent []sentMessage
}

func (f *fakeNotifier) Send(phone, message string) bool {
	f.sent = append(f.sent, sentMessage{phone: phone, message: message})
	return true
}

// --- Dish repository fake ---

type fakeDishRepo struct {
	dishes   map[int64]models.Dish
	openRefs map[int64]int
	nextID   int64
}

func newFakeDishRepo() *fakeDishRepo {
	return &fakeDishRepo{
		dishes:   make(map[int64]models.Dish),
		openRefs: make(map[int64]int),
	}
}

// add seeds a dish, assigning the next free ID.
func (f *fakeDishRepo) add(dish models.Dish) models.Dish {
	f.nextID++
	dish.ID = f.nextID
	if dish.CreatedAt.IsZero() {
		dish.CreatedAt = time.Now()
	}
	dish.UpdatedAt = dish.CreatedAt
	f.dishes[dish.ID] = dish
	return dish
}

func (f *fakeDishRepo) CreateDish(_ repositories.SQLExecutor, dish *models.Dish) (int64, error) {
	for _, existing := range f.dishes {
		if existing.Name == dish.Name {
			return 0, repositories.ErrDuplicateKey
		}
	}
	stored := f.add(*dish)
	return stored.ID, nil
}

func (f *fakeDishRepo) GetDishByID(id int64) (*models.Dish, error) {
	dish, ok := f.dishes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := dish
	return &out, nil
}

func (f *fakeDishRepo) GetDishes(filters models.DishFilters) ([]models.Dish, int, error) {
	ids := make([]int64, 0, len(f.dishes))
	for id, dish := range f.dishes {
		if filters.Category != nil && dish.Category != *filters.Category {
			continue
		}
		if filters.Available != nil && dish.IsAvailable != *filters.Available {
			continue
		}
		if filters.Special != nil && dish.IsSpecial != *filters.Special {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.Dish, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.dishes[id])
	}
	return out, len(out), nil
}

func (f *fakeDishRepo) UpdateDish(_ repositories.SQLExecutor, dish *models.Dish) error {
	stored, ok := f.dishes[dish.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	for id, existing := range f.dishes {
		if id != dish.ID && existing.Name == dish.Name {
			return repositories.ErrDuplicateKey
		}
	}
	updated := *dish
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	f.dishes[dish.ID] = updated
	return nil
}

func (f *fakeDishRepo) DeleteDish(_ repositories.SQLExecutor, id int64) error {
	if _, ok := f.dishes[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.dishes, id)
	return nil
}

func (f *fakeDishRepo) SetAvailability(_ repositories.SQLExecutor, id int64, available bool) error {
	stored, ok := f.dishes[id]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.IsAvailable = available
	stored.UpdatedAt = time.Now()
	f.dishes[id] = stored
	return nil
}

func (f *fakeDishRepo) CountOpenOrderReferences(id int64) (int, error) {
	return f.openRefs[id], nil
}

// --- Order repository fake ---

// fakeOrderRepo keeps orders and their items separately, like the real
// repository: order reads never include items.
type fakeOrderRepo struct {
	orders      map[int64]models.Order
	items       map[int64]models.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[int64]models.Order),
		items:  make(map[int64]models.OrderItem),
	}
}

func (f *fakeOrderRepo) addOrder(order models.Order) models.Order {
	f.nextOrderID++
	order.ID = f.nextOrderID
	order.OrderItems = nil
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderRepo) addItem(item models.OrderItem) models.OrderItem {
	f.nextItemID++
	item.ID = f.nextItemID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.UpdatedAt = item.CreatedAt
	f.items[item.ID] = item
	return item
}

func (f *fakeOrderRepo) CreateOrder(_ repositories.SQLExecutor, order *models.Order) (int64, error) {
	stored := f.addOrder(*order)
	return stored.ID, nil
}

func (f *fakeOrderRepo) GetOrderByID(orderID int64) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := order
	return &out, nil
}

func (f *fakeOrderRepo) GetOrderForUpdate(_ repositories.SQLExecutor, orderID int64) (*models.Order, error) {
	return f.GetOrderByID(orderID)
}

func (f *fakeOrderRepo) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	ids := make([]int64, 0, len(f.orders))
	for id, order := range f.orders {
		if filters.Status != nil && order.Status != *filters.Status {
			continue
		}
		if filters.TableCode != nil && order.TableCode != *filters.TableCode {
			continue
		}
		if filters.Billed != nil && order.Billed != *filters.Billed {
			continue
		}
		if filters.StaffID != nil && order.StaffID != *filters.StaffID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.orders[id])
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) UpdateOrderDerivedState(_ repositories.SQLExecutor, order *models.Order) error {
	stored, ok := f.orders[order.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Status = order.Status
	stored.TotalAmount = order.TotalAmount
	stored.Billed = order.Billed
	stored.PreparingAt = order.PreparingAt
	stored.ReadyAt = order.ReadyAt
	stored.CompletedAt = order.CompletedAt
	stored.UpdatedAt = time.Now()
	f.orders[order.ID] = stored
	return nil
}

func (f *fakeOrderRepo) CreateOrderItem(_ repositories.SQLExecutor, item *models.OrderItem) (int64, error) {
	stored := f.addItem(*item)
	return stored.ID, nil
}

func (f *fakeOrderRepo) GetOrderItemsByOrderID(_ repositories.SQLExecutor, orderID int64) ([]models.OrderItem, error) {
	ids := make([]int64, 0, len(f.items))
	for id, item := range f.items {
		if item.OrderID == orderID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.items[id])
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrderItemStatus(_ repositories.SQLExecutor, item *models.OrderItem) error {
	stored, ok := f.items[item.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Status = item.Status
	stored.PriorStatus = item.PriorStatus
	stored.UpdatedAt = time.Now()
	f.items[item.ID] = stored
	return nil
}

// --- Bill repository fake ---

type fakeBillRepo struct {
	bills          map[int64]models.Bill
	items          map[int64]models.BillItem
	nextBillID     int64
	nextItemID     int64
	nextSplitGroup int64
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{
		bills: make(map[int64]models.Bill),
		items: make(map[int64]models.BillItem),
	}
}

func (f *fakeBillRepo) CreateBill(_ repositories.SQLExecutor, bill *models.Bill) (int64, error) {
	// Mirrors the partial unique index: one non-split bill per order.
	if !bill.IsSplit {
		for _, existing := range f.bills {
			if existing.OrderID == bill.OrderID && !existing.IsSplit {
				return 0, repositories.ErrDuplicateKey
			}
		}
	}
	f.nextBillID++
	stored := *bill
	stored.ID = f.nextBillID
	stored.BillItems = nil
	stored.StaffName = nil
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.bills[stored.ID] = stored
	return stored.ID, nil
}

func (f *fakeBillRepo) CreateBillItem(_ repositories.SQLExecutor, item *models.BillItem) (int64, error) {
	f.nextItemID++
	stored := *item
	stored.ID = f.nextItemID
	stored.CreatedAt = time.Now()
	f.items[stored.ID] = stored
	return stored.ID, nil
}

func (f *fakeBillRepo) GetBillByID(billID int64) (*models.Bill, error) {
	bill, ok := f.bills[billID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := bill
	return &out, nil
}

func (f *fakeBillRepo) GetBillForUpdate(_ repositories.SQLExecutor, billID int64) (*models.Bill, error) {
	return f.GetBillByID(billID)
}

func (f *fakeBillRepo) GetBillItemsByBillID(billID int64) ([]models.BillItem, error) {
	ids := make([]int64, 0, len(f.items))
	for id, item := range f.items {
		if item.BillID == billID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.BillItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.items[id])
	}
	return out, nil
}

func (f *fakeBillRepo) GetBills(filters models.BillFilters) ([]models.Bill, int, error) {
	ids := make([]int64, 0, len(f.bills))
	for id, bill := range f.bills {
		if filters.OrderID != nil && bill.OrderID != *filters.OrderID {
			continue
		}
		if filters.PaymentStatus != nil && bill.PaymentStatus != *filters.PaymentStatus {
			continue
		}
		if filters.IsSplit != nil && bill.IsSplit != *filters.IsSplit {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.Bill, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.bills[id])
	}
	return out, len(out), nil
}

func (f *fakeBillRepo) NextSplitGroupID(_ repositories.SQLExecutor) (int64, error) {
	f.nextSplitGroup++
	return f.nextSplitGroup, nil
}

func (f *fakeBillRepo) UpdateBillPaymentStatus(_ repositories.SQLExecutor, billID int64, status string, updatedAt time.Time) error {
	stored, ok := f.bills[billID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.PaymentStatus = status
	stored.UpdatedAt = updatedAt
	f.bills[billID] = stored
	return nil
}

// --- User repository fake ---

type fakeUserRepo struct {
	users  map[int64]models.User
	hashes map[int64]string
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[int64]models.User),
		hashes: make(map[int64]string),
	}
}

func (f *fakeUserRepo) add(user models.User, passwordHash string) models.User {
	f.nextID++
	user.ID = f.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	f.hashes[user.ID] = passwordHash
	return user
}

func (f *fakeUserRepo) CreateUser(_ repositories.SQLExecutor, user *models.User, hashedPassword string) (int64, error) {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return 0, repositories.ErrDuplicateKey
		}
	}
	stored := f.add(*user, hashedPassword)
	return stored.ID, nil
}

func (f *fakeUserRepo) FindUserByEmail(email string) (*models.User, string, error) {
	for _, user := range f.users {
		if user.Email == email {
			out := user
			return &out, f.hashes[user.ID], nil
		}
	}
	return nil, "", repositories.ErrNotFound
}

func (f *fakeUserRepo) FindUserByID(userID int64) (*models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := user
	return &out, nil
}

func (f *fakeUserRepo) GetUsers(role *string, page, pageSize int) ([]models.User, int, error) {
	ids := make([]int64, 0, len(f.users))
	for id, user := range f.users {
		if role != nil && user.Role != *role {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	total := len(ids)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]models.User, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, f.users[id])
	}
	return out, total, nil
}

func (f *fakeUserRepo) UpdateUserRole(_ repositories.SQLExecutor, userID int64, role string) error {
	stored, ok := f.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Role = role
	stored.UpdatedAt = time.Now()
	f.users[userID] = stored
	return nil
}

func (f *fakeUserRepo) SetResetToken(_ repositories.SQLExecutor, userID int64, tokenHash string, expires time.Time) error {
	stored, ok := f.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.ResetTokenHash = &tokenHash
	stored.ResetTokenExpires = &expires
	stored.UpdatedAt = time.Now()
	f.users[userID] = stored
	return nil
}

func (f *fakeUserRepo) FindUserByResetTokenHash(tokenHash string) (*models.User, error) {
	for _, user := range f.users {
		if user.ResetTokenHash != nil && *user.ResetTokenHash == tokenHash {
			out := user
			return &out, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) UpdatePassword(_ repositories.SQLExecutor, userID int64, hashedPassword string) error {
	stored, ok := f.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.ResetTokenHash = nil
	stored.ResetTokenExpires = nil
	stored.UpdatedAt = time.Now()
	f.users[userID] = stored
	f.hashes[userID] = hashedPassword
	return nil
}

// --- Reservation repository fake ---

type fakeReservationRepo struct {
	reservations map[int64]models.Reservation
	nextID       int64
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[int64]models.Reservation)}
}

func (f *fakeReservationRepo) add(reservation models.Reservation) models.Reservation {
	f.nextID++
	reservation.ID = f.nextID
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now()
	}
	reservation.UpdatedAt = reservation.CreatedAt
	f.reservations[reservation.ID] = reservation
	return reservation
}

func (f *fakeReservationRepo) CreateReservation(_ repositories.SQLExecutor, reservation *models.Reservation) (*models.Reservation, error) {
	stored := f.add(*reservation)
	out := stored
	return &out, nil
}

func (f *fakeReservationRepo) GetReservationByID(id int64) (*models.Reservation, error) {
	reservation, ok := f.reservations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := reservation
	return &out, nil
}

func (f *fakeReservationRepo) GetReservations(filters models.ReservationFilters) ([]models.Reservation, int, error) {
	ids := make([]int64, 0, len(f.reservations))
	for id, reservation := range f.reservations {
		if filters.TableCode != nil && reservation.TableCode != *filters.TableCode {
			continue
		}
		if filters.Status != nil && reservation.Status != *filters.Status {
			continue
		}
		if filters.CustomerID != nil {
			if reservation.CustomerID == nil || *reservation.CustomerID != *filters.CustomerID {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]models.Reservation, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.reservations[id])
	}
	return out, len(out), nil
}

func (f *fakeReservationRepo) UpdateReservation(_ repositories.SQLExecutor, reservation *models.Reservation) (*models.Reservation, error) {
	stored, ok := f.reservations[reservation.ID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	updated := *reservation
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	f.reservations[reservation.ID] = updated
	out := updated
	return &out, nil
}

func (f *fakeReservationRepo) CountConflicts(tableCode string, windowStart, windowEnd time.Time, excludeReservationID *int64) (int, error) {
	count := 0
	for _, reservation := range f.reservations {
		if reservation.TableCode != tableCode {
			continue
		}
		if excludeReservationID != nil && reservation.ID == *excludeReservationID {
			continue
		}
		active := false
		for _, status := range models.ActiveReservationStatuses {
			if reservation.Status == status {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if reservation.ReservedFor.Before(windowStart) || reservation.ReservedFor.After(windowEnd) {
			continue
		}
		count++
	}
	return count, nil
}

package services

import (
	"testing"
	"time"

	"restaurant_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reservationServiceFixture struct {
	svc          ReservationService
	reservations *fakeReservationRepo
	notifier     *fakeNotifier
	now          time.Time
}

func newReservationServiceFixture(t *testing.T) *reservationServiceFixture {
	t.Helper()
	f := &reservationServiceFixture{
		reservations: newFakeReservationRepo(),
		notifier:     &fakeNotifier{},
		now:          time.Date(2025, time.April, 5, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewReservationService(f.reservations, newStubDB(t), []string{"T1", "T2"}, f.notifier, clockAt(f.now))
	return f
}

func (f *reservationServiceFixture) reserve(t *testing.T, actor Actor, table string, at time.Time) *models.Reservation {
	t.Helper()
	reservation, err := f.svc.CreateReservation(actor, CreateReservationRequest{
		TableCode:     table,
		CustomerName:  "Elena Georgiou",
		CustomerPhone: "+35799111222",
		GuestCount:    2,
		ReservedFor:   at,
	})
	require.NoError(t, err)
	return reservation
}

func TestCreateReservationRoles(t *testing.T) {
	f := newReservationServiceFixture(t)
	slot := f.now.Add(24 * time.Hour)

	// Customer requests start pending and carry the customer's identity.
	theirs := f.reserve(t, customerActor, "T1", slot)
	assert.Equal(t, models.ReservationStatusPending, theirs.Status)
	assert.True(t, theirs.IsCustomerMade)
	require.NotNil(t, theirs.CustomerID)
	assert.Equal(t, customerActor.UserID, *theirs.CustomerID)
	assert.Nil(t, theirs.StaffID)

	// Staff bookings are confirmed on the spot.
	walkIn := f.reserve(t, waiterActor, "T2", slot)
	assert.Equal(t, models.ReservationStatusConfirmed, walkIn.Status)
	assert.False(t, walkIn.IsCustomerMade)
	require.NotNil(t, walkIn.StaffID)
	assert.Equal(t, waiterActor.UserID, *walkIn.StaffID)
	assert.Nil(t, walkIn.CustomerID)
}

func TestCreateReservationValidation(t *testing.T) {
	f := newReservationServiceFixture(t)
	slot := f.now.Add(24 * time.Hour)

	valid := CreateReservationRequest{
		TableCode:     "T1",
		CustomerName:  "Elena Georgiou",
		CustomerPhone: "+35799111222",
		GuestCount:    2,
		ReservedFor:   slot,
	}

	tests := []struct {
		name   string
		mutate func(req *CreateReservationRequest)
	}{
		{"blank name", func(req *CreateReservationRequest) { req.CustomerName = "  " }},
		{"phone not E.164", func(req *CreateReservationRequest) { req.CustomerPhone = "99 111 222" }},
		{"zero guests", func(req *CreateReservationRequest) { req.GuestCount = 0 }},
		{"unknown table", func(req *CreateReservationRequest) { req.TableCode = "T7" }},
		{"time not in the future", func(req *CreateReservationRequest) { req.ReservedFor = f.now }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := f.svc.CreateReservation(customerActor, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestReservationConflictWindow(t *testing.T) {
	f := newReservationServiceFixture(t)
	base := f.now.Add(24 * time.Hour)
	f.reserve(t, waiterActor, "T1", base)

	// Two hours away, inclusive, still collides.
	_, err := f.svc.CreateReservation(waiterActor, CreateReservationRequest{
		TableCode:     "T1",
		CustomerName:  "Elena Georgiou",
		CustomerPhone: "+35799111222",
		GuestCount:    2,
		ReservedFor:   base.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrReservationConflict)

	_, err = f.svc.CreateReservation(waiterActor, CreateReservationRequest{
		TableCode:     "T1",
		CustomerName:  "Elena Georgiou",
		CustomerPhone: "+35799111222",
		GuestCount:    2,
		ReservedFor:   base.Add(-2 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrReservationConflict)

	// One second past the window is free, and other tables never collide.
	clear := f.reserve(t, waiterActor, "T1", base.Add(2*time.Hour+time.Second))
	assert.Equal(t, models.ReservationStatusConfirmed, clear.Status)
	f.reserve(t, waiterActor, "T2", base)

	// Cancelling releases the slot.
	cancelled, err := f.svc.CancelReservation(waiterActor, clear.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)
	f.reserve(t, waiterActor, "T1", base.Add(2*time.Hour+time.Second))
}

func TestUpdateReservationExcludesItselfFromConflicts(t *testing.T) {
	f := newReservationServiceFixture(t)
	base := f.now.Add(24 * time.Hour)
	first := f.reserve(t, waiterActor, "T1", base)

	// Nudging a reservation inside its own window must not self-collide.
	moved, err := f.svc.UpdateReservation(waiterActor, first.ID, UpdateReservationRequest{
		ReservedFor: timePtr(base.Add(30 * time.Minute)),
	})
	require.NoError(t, err)
	assert.True(t, moved.ReservedFor.Equal(base.Add(30*time.Minute)))

	second := f.reserve(t, waiterActor, "T1", base.Add(4*time.Hour))
	_, err = f.svc.UpdateReservation(waiterActor, second.ID, UpdateReservationRequest{
		ReservedFor: timePtr(base.Add(time.Hour)),
	})
	assert.ErrorIs(t, err, ErrReservationConflict)

	// Edits that leave the slot alone skip the conflict check entirely.
	resized, err := f.svc.UpdateReservation(waiterActor, first.ID, UpdateReservationRequest{
		GuestCount: intPtr(6),
		Notes:      strPtr("birthday, bring a candle"),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, resized.GuestCount)
}

func TestUpdateReservationPermissions(t *testing.T) {
	f := newReservationServiceFixture(t)
	slot := f.now.Add(24 * time.Hour)
	theirs := f.reserve(t, customerActor, "T1", slot)

	// The owning customer may edit while the request is still pending.
	renamed, err := f.svc.UpdateReservation(customerActor, theirs.ID, UpdateReservationRequest{
		CustomerName: strPtr("Elena G."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Elena G.", renamed.CustomerName)

	otherCustomer := Actor{UserID: 77, Role: models.RoleCustomer}
	_, err = f.svc.UpdateReservation(otherCustomer, theirs.ID, UpdateReservationRequest{
		CustomerName: strPtr("Hijacked"),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ApproveReservation(adminActor, theirs.ID, ApproveReservationRequest{Decision: CancellationApprove})
	require.NoError(t, err)

	// Once confirmed, the customer is locked out but staff may still edit.
	_, err = f.svc.UpdateReservation(customerActor, theirs.ID, UpdateReservationRequest{GuestCount: intPtr(4)})
	assert.ErrorIs(t, err, ErrReservationImmutable)

	_, err = f.svc.UpdateReservation(waiterActor, theirs.ID, UpdateReservationRequest{GuestCount: intPtr(4)})
	require.NoError(t, err)

	// Seated reservations are closed to edits for everyone.
	_, err = f.svc.SeatReservation(waiterActor, theirs.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateReservation(waiterActor, theirs.ID, UpdateReservationRequest{GuestCount: intPtr(2)})
	assert.ErrorIs(t, err, ErrReservationImmutable)
}

func TestApproveReservation(t *testing.T) {
	f := newReservationServiceFixture(t)
	when := time.Date(2025, time.April, 6, 19, 30, 0, 0, time.UTC)
	theirs := f.reserve(t, customerActor, "T1", when)

	_, err := f.svc.ApproveReservation(waiterActor, theirs.ID, ApproveReservationRequest{Decision: CancellationApprove})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ApproveReservation(adminActor, theirs.ID, ApproveReservationRequest{Decision: "later"})
	assert.ErrorIs(t, err, ErrValidation)

	approved, err := f.svc.ApproveReservation(adminActor, theirs.ID, ApproveReservationRequest{Decision: CancellationApprove})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusConfirmed, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, adminActor.UserID, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, f.now, *approved.ApprovedAt)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "+35799111222", f.notifier.sent[0].phone)
	assert.Equal(t,
		"Dear Elena Georgiou, your reservation for table T1 on Apr 6, 2025 at 7:30 PM is confirmed. We look forward to seeing you!",
		f.notifier.sent[0].message)

	// Settled requests cannot be approved twice.
	_, err = f.svc.ApproveReservation(adminActor, theirs.ID, ApproveReservationRequest{Decision: CancellationApprove})
	assert.ErrorIs(t, err, ErrReservationImmutable)

	// Staff bookings never go through approval.
	walkIn := f.reserve(t, waiterActor, "T2", when)
	_, err = f.svc.ApproveReservation(adminActor, walkIn.ID, ApproveReservationRequest{Decision: CancellationApprove})
	assert.ErrorIs(t, err, ErrReservationImmutable)
}

func TestRejectReservation(t *testing.T) {
	f := newReservationServiceFixture(t)
	when := time.Date(2025, time.April, 6, 19, 30, 0, 0, time.UTC)
	theirs := f.reserve(t, customerActor, "T1", when)

	rejected, err := f.svc.ApproveReservation(adminActor, theirs.ID, ApproveReservationRequest{Decision: CancellationReject})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, rejected.Status)
	assert.Nil(t, rejected.ApprovedBy)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t,
		"Dear Elena Georgiou, we are sorry: your reservation request for table T1 on Apr 6, 2025 at 7:30 PM could not be accommodated.",
		f.notifier.sent[0].message)

	// The rejected slot is free again.
	f.reserve(t, waiterActor, "T1", when)
}

func TestReservationSeatingLifecycle(t *testing.T) {
	f := newReservationServiceFixture(t)
	slot := f.now.Add(6 * time.Hour)
	walkIn := f.reserve(t, waiterActor, "T1", slot)

	_, err := f.svc.CompleteReservation(waiterActor, walkIn.ID)
	assert.ErrorIs(t, err, ErrReservationImmutable)

	seated, err := f.svc.SeatReservation(waiterActor, walkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusSeated, seated.Status)

	_, err = f.svc.SeatReservation(waiterActor, walkIn.ID)
	assert.ErrorIs(t, err, ErrReservationImmutable)

	done, err := f.svc.CompleteReservation(waiterActor, walkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, done.Status)

	// Completed reservations cannot be cancelled, even by staff.
	_, err = f.svc.CancelReservation(waiterActor, walkIn.ID)
	assert.ErrorIs(t, err, ErrReservationImmutable)
}

func TestCancelReservationPermissions(t *testing.T) {
	f := newReservationServiceFixture(t)
	slot := f.now.Add(24 * time.Hour)

	theirs := f.reserve(t, customerActor, "T1", slot)
	cancelled, err := f.svc.CancelReservation(customerActor, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCancelled, cancelled.Status)

	// A confirmed reservation is out of the customer's hands.
	confirmed := f.reserve(t, customerActor, "T2", slot)
	_, err = f.svc.ApproveReservation(adminActor, confirmed.ID, ApproveReservationRequest{Decision: CancellationApprove})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(customerActor, confirmed.ID)
	assert.ErrorIs(t, err, ErrReservationImmutable)

	_, err = f.svc.CancelReservation(waiterActor, confirmed.ID)
	require.NoError(t, err)
}

func TestCheckAvailability(t *testing.T) {
	f := newReservationServiceFixture(t)
	base := f.now.Add(24 * time.Hour)
	f.reserve(t, waiterActor, "T1", base)

	free, err := f.svc.CheckAvailability(base)
	require.NoError(t, err)
	assert.Equal(t, []string{"T2"}, free)

	// At the inclusive edge of the window the table is still blocked.
	free, err = f.svc.CheckAvailability(base.Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"T2"}, free)

	free, err = f.svc.CheckAvailability(base.Add(4 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, free)

	assert.Equal(t, []string{"T1", "T2"}, f.svc.Tables())
}

func TestGetReservationsScopesCustomers(t *testing.T) {
	f := newReservationServiceFixture(t)
	slot := f.now.Add(24 * time.Hour)
	otherCustomer := Actor{UserID: 77, Role: models.RoleCustomer}

	mine := f.reserve(t, customerActor, "T1", slot)
	f.reserve(t, otherCustomer, "T2", slot)
	f.reserve(t, waiterActor, "T1", slot.Add(5*time.Hour))

	listed, total, err := f.svc.GetReservations(customerActor, models.ReservationFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, listed, 1)
	assert.Equal(t, mine.ID, listed[0].ID)

	// Staff see everything.
	_, total, err = f.svc.GetReservations(waiterActor, models.ReservationFilters{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	_, err = f.svc.GetReservationByID(otherCustomer, mine.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.GetReservationByID(customerActor, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
}

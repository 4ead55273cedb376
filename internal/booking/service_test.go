package booking_test

import (
	"context"
	"errors"
	"io"
	"ms-booking/internal/apperr"
	"ms-booking/internal/booking"
	"ms-booking/internal/database/dbtest"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"
	"ms-booking/internal/tickets/checkin"
	ticketdb "ms-booking/internal/tickets/db"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTicketBooked(ctx context.Context, ticket *models.Ticket, available int) error {
	args := m.Called(ctx, ticket, available)
	return args.Error(0)
}

func (m *MockPublisher) PublishTicketCancelled(ctx context.Context, ticket *models.Ticket, available int) error {
	args := m.Called(ctx, ticket, available)
	return args.Error(0)
}

func (m *MockPublisher) PublishEventDeleted(ctx context.Context, eventID, deletedBy string, ticketsDeleted int64) error {
	args := m.Called(ctx, eventID, deletedBy, ticketsDeleted)
	return args.Error(0)
}

type fixture struct {
	db      *bun.DB
	svc     *booking.BookingService
	pub     *MockPublisher
	emitter *sse.InventoryEmitter
	codes   *checkin.Generator
	events  *eventdb.DB
	tickets *ticketdb.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.NewSQLite(t)
	codes, err := checkin.NewGenerator("test-secret")
	require.NoError(t, err)

	pub := &MockPublisher{}
	pub.On("PublishTicketBooked", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	pub.On("PublishTicketCancelled", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	pub.On("PublishEventDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	emitter := sse.NewInventoryEmitter()
	svc := booking.NewBookingService(booking.BunUnitOfWork{DB: db}, codes, pub, emitter, logger.NewConsoleLogger(io.Discard), 3)

	return &fixture{
		db:      db,
		svc:     svc,
		pub:     pub,
		emitter: emitter,
		codes:   codes,
		events:  &eventdb.DB{Bun: db},
		tickets: &ticketdb.DB{Bun: db},
	}
}

// assertInventoryConsistent checks that the counter equals capacity minus the
// confirmed quantity and that nothing is oversold.
func (f *fixture) assertInventoryConsistent(t *testing.T, eventID string) {
	t.Helper()
	ctx := context.Background()

	available, capacity, err := f.events.Inventory(ctx, eventID)
	require.NoError(t, err)
	sold, err := f.tickets.ConfirmedQuantity(ctx, eventID)
	require.NoError(t, err)

	assert.LessOrEqual(t, sold, capacity)
	assert.GreaterOrEqual(t, available, 0)
	assert.Equal(t, capacity-sold, available)
}

func TestBookTicketsSuccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := f.emitter.Subscribe(subCtx, event.ID)

	result, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 3)
	require.NoError(t, err)

	ticket := result.Ticket
	assert.Equal(t, 7, result.EventTicketsAvailable)
	assert.Equal(t, models.BookingStatusConfirmed, ticket.BookingStatus)
	assert.Equal(t, 3, ticket.Quantity)
	assert.Equal(t, 25.0, ticket.UnitPrice)
	assert.Equal(t, 75.0, ticket.TotalPrice)
	assert.Regexp(t, `^TKT-\d+-[0-9a-z]{9}$`, ticket.TicketNumber)

	payload, err := f.codes.Decode(ticket.CheckInCode)
	require.NoError(t, err)
	assert.Equal(t, event.ID, payload.EventID)
	assert.Equal(t, ticket.TicketNumber, payload.TicketNumber)

	stored, err := f.tickets.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketNumber, stored.TicketNumber)

	select {
	case update := <-updates:
		assert.Equal(t, 7, update.TicketsAvailable)
		assert.Equal(t, 10, update.Capacity)
		assert.Equal(t, models.InventoryReasonBooked, update.Reason)
	case <-time.After(time.Second):
		t.Fatal("no inventory update emitted")
	}

	f.pub.AssertCalled(t, "PublishTicketBooked", mock.Anything, ticket, 7)
	f.assertInventoryConsistent(t, event.ID)
}

func TestBookTicketsPriceIsSnapshotted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	first, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 2)
	require.NoError(t, err)

	event.TicketPrice = 40
	require.NoError(t, f.events.UpdateEventDetails(ctx, event, "ticket_price"))

	second, err := f.svc.BookTickets(ctx, event.ID, "buyer-2", 2)
	require.NoError(t, err)

	stored, err := f.tickets.GetTicketByID(ctx, first.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, stored.TotalPrice)
	assert.Equal(t, 80.0, second.Ticket.TotalPrice)
}

func TestBookTicketsValidationOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	soldOut := dbtest.SeedEvent(t, f.db, "organizer-1", 5, func(e *models.Event) {
		e.TicketsAvailable = 0
		e.MaxTicketsPerOrder = 4
	})
	open := dbtest.SeedEvent(t, f.db, "organizer-1", 5, func(e *models.Event) {
		e.MaxTicketsPerOrder = 4
	})

	tests := []struct {
		name     string
		eventID  string
		buyer    string
		quantity int
		kind     apperr.Kind
	}{
		{"missing event", "does-not-exist", "buyer-1", 1, apperr.KindNotFound},
		{"own event regardless of inventory", soldOut.ID, "organizer-1", 1, apperr.KindInvalidOperation},
		{"own event regardless of quantity", open.ID, "organizer-1", 99, apperr.KindInvalidOperation},
		{"quantity above order cap", open.ID, "buyer-1", 5, apperr.KindInvalidInput},
		{"zero quantity", open.ID, "buyer-1", 0, apperr.KindInvalidInput},
		{"negative quantity", open.ID, "buyer-1", -2, apperr.KindInvalidInput},
		{"cap checked before inventory", soldOut.ID, "buyer-1", 5, apperr.KindInvalidInput},
		{"sold out", soldOut.ID, "buyer-1", 1, apperr.KindInsufficientInventory},
		{"not logged in", open.ID, "", 1, apperr.KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BookTickets(ctx, tt.eventID, tt.buyer, tt.quantity)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	_, err := f.svc.BookTickets(ctx, open.ID, "buyer-1", 5)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "quantity", e.Field)

	f.assertInventoryConsistent(t, open.ID)
	f.pub.AssertNotCalled(t, "PublishTicketBooked", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookTicketsReportsRemaining(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 2)

	_, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 3)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInsufficientInventory, e.Kind)
	assert.Equal(t, 2, e.Remaining)

	n, err := f.tickets.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.svc.BookTickets(ctx, event.ID, "buyer-1", 2)
	require.NoError(t, err)
}

func TestCancelRestoresExactly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	_, err := f.svc.BookTickets(ctx, event.ID, "buyer-2", 1)
	require.NoError(t, err)
	before, _, err := f.events.Inventory(ctx, event.ID)
	require.NoError(t, err)

	result, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 3)
	require.NoError(t, err)
	assert.Equal(t, before-3, result.EventTicketsAvailable)

	ticket, err := f.svc.CancelTicket(ctx, result.Ticket.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, ticket.BookingStatus)

	after, capacity, err := f.events.Inventory(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.LessOrEqual(t, after, capacity)

	f.pub.AssertCalled(t, "PublishTicketCancelled", mock.Anything, ticket, before)
	f.assertInventoryConsistent(t, event.ID)
}

func TestCancelTwiceIsInvalidOperation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	result, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 2)
	require.NoError(t, err)
	_, err = f.svc.CancelTicket(ctx, result.Ticket.ID, "buyer-1")
	require.NoError(t, err)

	available, _, err := f.events.Inventory(ctx, event.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelTicket(ctx, result.Ticket.ID, "buyer-1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidOperation))

	again, _, err := f.events.Inventory(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, available, again)
}

func TestCancelRequiresBuyer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	result, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 2)
	require.NoError(t, err)

	_, err = f.svc.CancelTicket(ctx, result.Ticket.ID, "organizer-1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "organizer cannot cancel a buyer's ticket")

	_, err = f.svc.CancelTicket(ctx, result.Ticket.ID, "buyer-2")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.CancelTicket(ctx, "missing", "buyer-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.CancelTicket(ctx, result.Ticket.ID, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	f.assertInventoryConsistent(t, event.ID)
}

func TestCancelNeverExceedsCapacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	result, err := f.svc.BookTickets(ctx, event.ID, "buyer-1", 3)
	require.NoError(t, err)

	// an explicit owner edit puts the counter back to full
	require.NoError(t, f.events.SetTicketsAvailable(ctx, event.ID, 10))

	_, err = f.svc.CancelTicket(ctx, result.Ticket.ID, "buyer-1")
	require.NoError(t, err)

	available, capacity, err := f.events.Inventory(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, available)
}

func TestConcurrentLastTicketRace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 1)

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.BookTickets(ctx, event.ID, []string{"buyer-a", "buyer-b"}[i], 1)
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		e, ok := apperr.As(err)
		require.True(t, ok, "unexpected error %v", err)
		assert.Equal(t, apperr.KindInsufficientInventory, e.Kind)
		assert.Equal(t, 0, e.Remaining)
	}
	assert.Equal(t, 1, succeeded)
	f.assertInventoryConsistent(t, event.ID)
}

func TestNoOversellUnderConcurrentBookingAndCancellation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 7, func(e *models.Event) {
		e.MaxTicketsPerOrder = 3
	})

	// a few confirmed tickets to cancel while bookings race
	var existing []*models.Ticket
	for i := 0; i < 2; i++ {
		res, err := f.svc.BookTickets(ctx, event.ID, "early-buyer", 2)
		require.NoError(t, err)
		existing = append(existing, res.Ticket)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.BookTickets(ctx, event.ID, "buyer", 1+i%3)
			if err != nil {
				assert.True(t, apperr.Is(err, apperr.KindInsufficientInventory), "unexpected error %v", err)
			}
		}(i)
	}
	for _, ticket := range existing {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			_, err := f.svc.CancelTicket(ctx, id, "early-buyer")
			assert.NoError(t, err)
		}(ticket.ID)
	}
	close(start)
	wg.Wait()

	f.assertInventoryConsistent(t, event.ID)
}

func TestDeleteEventCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)
	other := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	for _, buyer := range []string{"buyer-1", "buyer-2", "buyer-3"} {
		_, err := f.svc.BookTickets(ctx, event.ID, buyer, 1)
		require.NoError(t, err)
	}
	_, err := f.svc.BookTickets(ctx, other.ID, "buyer-1", 1)
	require.NoError(t, err)

	err = f.svc.DeleteEvent(ctx, event.ID, models.Identity{UserID: "buyer-1"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	n, err := f.tickets.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "nothing deleted when access is denied")

	require.NoError(t, f.svc.DeleteEvent(ctx, event.ID, models.Identity{UserID: "organizer-1"}))

	n, err = f.tickets.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, err = f.events.GetEvent(ctx, event.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	n, err = f.tickets.CountByEvent(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.pub.AssertCalled(t, "PublishEventDeleted", mock.Anything, event.ID, "organizer-1", int64(3))

	err = f.svc.DeleteEvent(ctx, event.ID, models.Identity{UserID: "organizer-1"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

// failingEventDelete lets the ticket cascade run, then fails the event delete.
type failingEventDelete struct {
	booking.EventStore
	err error
}

func (s failingEventDelete) DeleteEvent(context.Context, string) error {
	return s.err
}

type countingTicketDelete struct {
	booking.TicketStore
	deleted *int64
}

func (s countingTicketDelete) DeleteTicketsByEvent(ctx context.Context, eventID string) (int64, error) {
	n, err := s.TicketStore.DeleteTicketsByEvent(ctx, eventID)
	*s.deleted += n
	return n, err
}

type failingDeleteUOW struct {
	inner   booking.UnitOfWork
	err     error
	deleted int64
}

func (u *failingDeleteUOW) Do(ctx context.Context, fn func(ctx context.Context, s booking.Stores) error) error {
	return u.inner.Do(ctx, func(ctx context.Context, s booking.Stores) error {
		return fn(ctx, booking.Stores{
			Events:  failingEventDelete{EventStore: s.Events, err: u.err},
			Tickets: countingTicketDelete{TicketStore: s.Tickets, deleted: &u.deleted},
		})
	})
}

func TestFailedDeleteCascadeLeavesTicketsInPlace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)
	for _, buyer := range []string{"buyer-1", "buyer-2"} {
		_, err := f.svc.BookTickets(ctx, event.ID, buyer, 1)
		require.NoError(t, err)
	}

	boom := errors.New("disk full")
	uow := &failingDeleteUOW{inner: booking.BunUnitOfWork{DB: f.db}, err: boom}
	svc := booking.NewBookingService(uow, f.codes, f.pub, f.emitter, logger.NewConsoleLogger(io.Discard), 3)

	err := svc.DeleteEvent(ctx, event.ID, models.Identity{UserID: "organizer-1"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(2), uow.deleted, "tickets were removed inside the transaction")

	n, err := f.tickets.CountByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err := f.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.TicketsAvailable)
	f.pub.AssertNotCalled(t, "PublishEventDeleted", mock.Anything, event.ID, mock.Anything, mock.Anything)
}

func TestAdminCanDeleteAnyEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	require.NoError(t, f.svc.DeleteEvent(ctx, event.ID, models.Identity{UserID: "admin-1", IsAdmin: true}))
	_, err := f.events.GetEvent(ctx, event.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	db := dbtest.NewSQLite(t)
	codes, err := checkin.NewGenerator("test-secret")
	require.NoError(t, err)

	pub := &MockPublisher{}
	pub.On("PublishTicketBooked", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc := booking.NewBookingService(booking.BunUnitOfWork{DB: db}, codes, pub, nil, logger.NewConsoleLogger(io.Discard), 3)

	event := dbtest.SeedEvent(t, db, "organizer-1", 10)
	result, err := svc.BookTickets(context.Background(), event.ID, "buyer-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 9, result.EventTicketsAvailable)
	pub.AssertExpectations(t)
}

// flakyUOW fails the first failures attempts with a PostgreSQL serialization
// error before delegating.
type flakyUOW struct {
	inner    booking.UnitOfWork
	failures int
	calls    int
}

func (u *flakyUOW) Do(ctx context.Context, fn func(ctx context.Context, s booking.Stores) error) error {
	u.calls++
	if u.calls <= u.failures {
		return &pq.Error{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	return u.inner.Do(ctx, fn)
}

func TestRetriesTransientConflicts(t *testing.T) {
	f := setup(t)
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	uow := &flakyUOW{inner: booking.BunUnitOfWork{DB: f.db}, failures: 2}
	f.svc.UOW = uow

	result, err := f.svc.BookTickets(context.Background(), event.ID, "buyer-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 9, result.EventTicketsAvailable)
	assert.Equal(t, 3, uow.calls)
}

func TestRetryExhaustionIsConcurrencyConflict(t *testing.T) {
	f := setup(t)
	event := dbtest.SeedEvent(t, f.db, "organizer-1", 10)

	uow := &flakyUOW{inner: booking.BunUnitOfWork{DB: f.db}, failures: 100}
	f.svc.UOW = uow

	_, err := f.svc.BookTickets(context.Background(), event.ID, "buyer-1", 1)
	assert.True(t, apperr.Is(err, apperr.KindConcurrencyConflict))
	assert.Equal(t, f.svc.MaxRetries+1, uow.calls)
	f.assertInventoryConsistent(t, event.ID)
}

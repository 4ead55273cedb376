package booking

import (
	"context"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/models"
	ticketdb "ms-booking/internal/tickets/db"

	"github.com/uptrace/bun"
)

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ReserveTickets(ctx context.Context, eventID string, quantity int) (bool, error)
	ReleaseTickets(ctx context.Context, eventID string, quantity int) error
	Inventory(ctx context.Context, eventID string) (available, capacity int, err error)
	DeleteEvent(ctx context.Context, eventID string) error
}

type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	MarkCancelled(ctx context.Context, id string) (bool, error)
	DeleteTicketsByEvent(ctx context.Context, eventID string) (int64, error)
}

// Stores are bound to a single transaction.
type Stores struct {
	Events  EventStore
	Tickets TicketStore
}

// UnitOfWork runs fn atomically: either every write fn makes through the
// stores commits, or none does.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type BunUnitOfWork struct {
	DB *bun.DB
}

func (u BunUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return u.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, Stores{
			Events:  &eventdb.DB{Bun: tx},
			Tickets: &ticketdb.DB{Bun: tx},
		})
	})
}

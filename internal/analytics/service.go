// Package analytics serves the admin dashboard and per-event revenue reports.
package analytics

import (
	"context"
	"ms-booking/internal/access"
	"ms-booking/internal/apperr"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	ticketdb "ms-booking/internal/tickets/db"

	"github.com/uptrace/bun"
)

type Service struct {
	DB      *DB
	Events  *eventdb.DB
	Tickets *ticketdb.DB
	Logger  *logger.Logger
}

func NewService(db bun.IDB, log *logger.Logger) *Service {
	return &Service{
		DB:      &DB{Bun: db},
		Events:  &eventdb.DB{Bun: db},
		Tickets: &ticketdb.DB{Bun: db},
		Logger:  log,
	}
}

func (s *Service) Stats(ctx context.Context, who models.Identity) (*models.DashboardStats, error) {
	if err := access.RequireAdmin(who); err != nil {
		return nil, err
	}

	total, err := s.DB.CountEvents(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to load stats", err)
	}
	upcoming, err := s.DB.CountEventsByStatus(ctx, models.EventStatusUpcoming)
	if err != nil {
		return nil, apperr.Internal("failed to load stats", err)
	}
	totals, err := s.DB.ConfirmedTotals(ctx, "")
	if err != nil {
		return nil, apperr.Internal("failed to load stats", err)
	}

	return &models.DashboardStats{
		TotalEvents:    total,
		UpcomingEvents: upcoming,
		TicketsSold:    totals.Tickets,
		Bookings:       totals.Bookings,
		TotalRevenue:   totals.Revenue,
	}, nil
}

// EventRevenue reports confirmed revenue for one event, per day. The event's
// owner may read it as well as admins.
func (s *Service) EventRevenue(ctx context.Context, who models.Identity, eventID string) (*models.EventRevenue, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in")
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Internal("failed to load event", err)
	}
	if err := access.RequireEventMutation(event, who); err != nil {
		return nil, err
	}

	totals, err := s.DB.ConfirmedTotals(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("failed to load revenue", err)
	}
	tickets, err := s.DB.ConfirmedTickets(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("failed to load revenue", err)
	}

	return &models.EventRevenue{
		EventID:      eventID,
		TotalRevenue: totals.Revenue,
		TotalTickets: totals.Tickets,
		DailySales:   dailySales(tickets),
	}, nil
}

// TicketSales lists every confirmed ticket with its event, newest first.
func (s *Service) TicketSales(ctx context.Context, who models.Identity) ([]models.Ticket, error) {
	if err := access.RequireAdmin(who); err != nil {
		return nil, err
	}
	list, err := s.Tickets.ListConfirmed(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to load ticket sales", err)
	}
	return list, nil
}

// AllEvents is the admin event list, each with its sales.
func (s *Service) AllEvents(ctx context.Context, who models.Identity) ([]models.EventWithStats, error) {
	if err := access.RequireAdmin(who); err != nil {
		return nil, err
	}
	events, err := s.Events.ListEvents(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list events", err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	sales, err := s.Events.SalesByEvent(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load event sales", err)
	}

	out := make([]models.EventWithStats, len(events))
	for i, e := range events {
		out[i] = models.EventWithStats{Event: e, Stats: sales[e.ID]}
	}
	return out, nil
}

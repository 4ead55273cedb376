// Package tickets answers buyer and organizer questions about issued tickets:
// what a user holds, the QR image for a ticket and door check-in.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"ms-booking/internal/access"
	"ms-booking/internal/apperr"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/tickets/checkin"
	"time"
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketByNumber(ctx context.Context, eventID, number string) (*models.Ticket, error)
	ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error)
	ConfirmedQuantity(ctx context.Context, eventID string) (int, error)
	CheckedInQuantity(ctx context.Context, eventID string) (int, error)
}

type EventDBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type CodeDecoder interface {
	Decode(code string) (checkin.Payload, error)
}

type TicketService struct {
	Tickets TicketDBLayer
	Events  EventDBLayer
	Codes   CodeDecoder
	Logger  *logger.Logger

	now func() time.Time
}

func NewTicketService(tickets TicketDBLayer, events EventDBLayer, codes CodeDecoder, log *logger.Logger) *TicketService {
	return &TicketService{
		Tickets: tickets,
		Events:  events,
		Codes:   codes,
		Logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListMyTickets returns the caller's tickets with their events, newest first.
func (s *TicketService) ListMyTickets(ctx context.Context, who models.Identity) ([]models.Ticket, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in")
	}
	list, err := s.Tickets.ListTicketsByUser(ctx, who.UserID)
	if err != nil {
		return nil, apperr.Internal("failed to load tickets", err)
	}
	return list, nil
}

// TicketQR renders the check-in code of the caller's ticket as a PNG.
func (s *TicketService) TicketQR(ctx context.Context, who models.Identity, ticketID string) ([]byte, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in")
	}
	ticket, err := s.Tickets.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, passThrough("failed to load ticket", err)
	}
	if ticket.UserID != who.UserID {
		return nil, apperr.Forbidden("you can only view your own tickets")
	}

	png, err := checkin.QRPNG(ticket.CheckInCode)
	if err != nil {
		return nil, apperr.Internal("failed to render QR code", err)
	}
	return png, nil
}

// VerifyCheckIn decodes a scanned code and admits the ticket once. Only the
// event's organizer or an admin may scan.
func (s *TicketService) VerifyCheckIn(ctx context.Context, who models.Identity, code string) (*models.CheckInResult, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in")
	}
	if code == "" {
		return nil, apperr.InvalidInput("code", "code is required")
	}

	payload, err := s.Codes.Decode(code)
	if errors.Is(err, checkin.ErrInvalidCode) {
		s.Logger.LogSecurity("CHECKIN_REJECTED", fmt.Sprintf("invalid code presented by %s", who.UserID))
		return nil, apperr.InvalidInput("code", "check-in code is not valid")
	}
	if err != nil {
		return nil, apperr.Internal("failed to decode check-in code", err)
	}

	event, err := s.Events.GetEvent(ctx, payload.EventID)
	if err != nil {
		return nil, passThrough("failed to load event", err)
	}
	if err := access.RequireEventMutation(event, who); err != nil {
		return nil, apperr.Forbidden("only the organizer can check in tickets for this event")
	}

	ticket, err := s.Tickets.GetTicketByNumber(ctx, payload.EventID, payload.TicketNumber)
	if err != nil {
		return nil, passThrough("failed to load ticket", err)
	}
	if ticket.BookingStatus != models.BookingStatusConfirmed {
		return nil, apperr.InvalidOperation("ticket is " + ticket.BookingStatus)
	}
	if ticket.CheckedIn {
		return &models.CheckInResult{Ticket: ticket, AlreadyChecked: true}, nil
	}

	at := s.now()
	admitted, err := s.Tickets.MarkCheckedIn(ctx, ticket.ID, at)
	if err != nil {
		return nil, apperr.Internal("failed to check in ticket", err)
	}
	if !admitted {
		// lost a race with another scanner or a cancellation
		fresh, err := s.Tickets.GetTicketByID(ctx, ticket.ID)
		if err != nil {
			return nil, passThrough("failed to load ticket", err)
		}
		if fresh.BookingStatus != models.BookingStatusConfirmed {
			return nil, apperr.InvalidOperation("ticket is " + fresh.BookingStatus)
		}
		return &models.CheckInResult{Ticket: fresh, AlreadyChecked: true}, nil
	}

	ticket.CheckedIn = true
	ticket.CheckedInAt = &at
	ticket.UpdatedAt = at
	s.Logger.LogBooking("CHECKED_IN", ticket.ID, fmt.Sprintf("event=%s by=%s", event.ID, who.UserID))
	return &models.CheckInResult{Ticket: ticket}, nil
}

func passThrough(message string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(message, err)
}

package tickets

import (
	"context"
	"ms-booking/internal/access"
	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
)

// Attendance reports how many tickets were sold for the event and how many
// of them have been checked in at the door.
func (s *TicketService) Attendance(ctx context.Context, who models.Identity, eventID string) (*models.Attendance, error) {
	if who.UserID == "" {
		return nil, apperr.Unauthorized("you must be logged in")
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, passThrough("failed to load event", err)
	}
	if err := access.RequireEventMutation(event, who); err != nil {
		return nil, err
	}

	sold, err := s.Tickets.ConfirmedQuantity(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("failed to count tickets", err)
	}
	checkedIn, err := s.Tickets.CheckedInQuantity(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("failed to count check-ins", err)
	}
	return &models.Attendance{
		EventID:     eventID,
		Capacity:    event.Capacity,
		TicketsSold: sold,
		CheckedIn:   checkedIn,
	}, nil
}

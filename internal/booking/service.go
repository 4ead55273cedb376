// Package booking books and cancels tickets against an event's inventory
// counter and cascades event deletion to its tickets.
package booking

import (
	"context"
	"errors"
	"fmt"
	"ms-booking/internal/access"
	"ms-booking/internal/apperr"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	retryBackoff   = 15 * time.Millisecond
	publishTimeout = 3 * time.Second
)

type Publisher interface {
	PublishTicketBooked(ctx context.Context, ticket *models.Ticket, available int) error
	PublishTicketCancelled(ctx context.Context, ticket *models.Ticket, available int) error
	PublishEventDeleted(ctx context.Context, eventID, deletedBy string, ticketsDeleted int64) error
}

type InventoryNotifier interface {
	Emit(update models.InventoryUpdate)
}

// CodeIssuer produces the check-in code bound to a ticket.
type CodeIssuer interface {
	Code(eventID, ticketNumber string) (string, error)
}

type BookingService struct {
	UOW        UnitOfWork
	Codes      CodeIssuer
	Publisher  Publisher
	Inventory  InventoryNotifier
	Logger     *logger.Logger
	MaxRetries int

	newTicketNumber func() string
}

func NewBookingService(uow UnitOfWork, codes CodeIssuer, publisher Publisher, inventory InventoryNotifier, log *logger.Logger, maxRetries int) *BookingService {
	return &BookingService{
		UOW:             uow,
		Codes:           codes,
		Publisher:       publisher,
		Inventory:       inventory,
		Logger:          log,
		MaxRetries:      maxRetries,
		newTicketNumber: utils.GenerateTicketNumber,
	}
}

// BookTickets reserves quantity tickets of eventID for buyerID and records the
// confirmed ticket in the same transaction.
func (s *BookingService) BookTickets(ctx context.Context, eventID, buyerID string, quantity int) (*models.BookingResult, error) {
	if buyerID == "" {
		return nil, apperr.Unauthorized("you must be logged in to book tickets")
	}

	var result *models.BookingResult
	var capacity int
	err := s.withRetry(ctx, "BOOK", eventID, func() error {
		return s.UOW.Do(ctx, func(ctx context.Context, st Stores) error {
			event, err := st.Events.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if event.CreatedBy == buyerID {
				return apperr.InvalidOperation("cannot book your own event")
			}
			if quantity < 1 || quantity > event.MaxTicketsPerOrder {
				return apperr.InvalidInput("quantity", fmt.Sprintf("quantity must be between 1 and %d", event.MaxTicketsPerOrder))
			}
			if event.TicketsAvailable < quantity {
				return apperr.InsufficientInventory(event.TicketsAvailable)
			}

			reserved, err := st.Events.ReserveTickets(ctx, eventID, quantity)
			if err != nil {
				return err
			}
			if !reserved {
				available, _, err := st.Events.Inventory(ctx, eventID)
				if err != nil {
					return err
				}
				if available < quantity {
					return apperr.InsufficientInventory(available)
				}
				return apperr.ConcurrencyConflict("inventory changed during booking")
			}

			ticket, err := s.newTicket(event, buyerID, quantity)
			if err != nil {
				return err
			}
			if err := st.Tickets.CreateTicket(ctx, ticket); err != nil {
				return err
			}

			var available int
			available, capacity, err = st.Events.Inventory(ctx, eventID)
			if err != nil {
				return err
			}
			result = &models.BookingResult{Ticket: ticket, EventTicketsAvailable: available}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("BOOKED", result.Ticket.ID, fmt.Sprintf("event=%s buyer=%s qty=%d remaining=%d",
		eventID, buyerID, quantity, result.EventTicketsAvailable))
	s.afterCommit(ctx, models.InventoryUpdate{
		EventID:          eventID,
		TicketsAvailable: result.EventTicketsAvailable,
		Capacity:         capacity,
		Reason:           models.InventoryReasonBooked,
	}, func(ctx context.Context) error {
		return s.Publisher.PublishTicketBooked(ctx, result.Ticket, result.EventTicketsAvailable)
	})
	return result, nil
}

// CancelTicket cancels the requester's confirmed ticket and returns its
// quantity to the event, never beyond capacity.
func (s *BookingService) CancelTicket(ctx context.Context, ticketID, requesterID string) (*models.Ticket, error) {
	if requesterID == "" {
		return nil, apperr.Unauthorized("you must be logged in to cancel tickets")
	}

	var ticket *models.Ticket
	var available, capacity int
	err := s.withRetry(ctx, "CANCEL", ticketID, func() error {
		return s.UOW.Do(ctx, func(ctx context.Context, st Stores) error {
			var err error
			ticket, err = st.Tickets.GetTicketByID(ctx, ticketID)
			if err != nil {
				return err
			}
			if ticket.UserID != requesterID {
				return apperr.Forbidden("you can only cancel your own tickets")
			}
			if ticket.BookingStatus == models.BookingStatusCancelled {
				return apperr.InvalidOperation("ticket is already cancelled")
			}
			if ticket.BookingStatus != models.BookingStatusConfirmed {
				return apperr.InvalidOperation("only confirmed tickets can be cancelled")
			}

			cancelled, err := st.Tickets.MarkCancelled(ctx, ticketID)
			if err != nil {
				return err
			}
			if !cancelled {
				return apperr.InvalidOperation("ticket is already cancelled")
			}
			if err := st.Events.ReleaseTickets(ctx, ticket.EventID, ticket.Quantity); err != nil {
				return err
			}

			available, capacity, err = st.Events.Inventory(ctx, ticket.EventID)
			if err != nil {
				return err
			}
			ticket.BookingStatus = models.BookingStatusCancelled
			ticket.UpdatedAt = time.Now().UTC()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogBooking("CANCELLED", ticket.ID, fmt.Sprintf("event=%s qty=%d remaining=%d", ticket.EventID, ticket.Quantity, available))
	s.afterCommit(ctx, models.InventoryUpdate{
		EventID:          ticket.EventID,
		TicketsAvailable: available,
		Capacity:         capacity,
		Reason:           models.InventoryReasonCancelled,
	}, func(ctx context.Context) error {
		return s.Publisher.PublishTicketCancelled(ctx, ticket, available)
	})
	return ticket, nil
}

// DeleteEvent removes eventID and every ticket referencing it as one unit.
// Only the owner or an admin may delete.
func (s *BookingService) DeleteEvent(ctx context.Context, eventID string, who models.Identity) error {
	if who.UserID == "" {
		return apperr.Unauthorized("you must be logged in to delete events")
	}

	var deleted int64
	err := s.withRetry(ctx, "DELETE_EVENT", eventID, func() error {
		return s.UOW.Do(ctx, func(ctx context.Context, st Stores) error {
			event, err := st.Events.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if err := access.RequireEventMutation(event, who); err != nil {
				return err
			}

			deleted, err = st.Tickets.DeleteTicketsByEvent(ctx, eventID)
			if err != nil {
				return err
			}
			return st.Events.DeleteEvent(ctx, eventID)
		})
	})
	if err != nil {
		return err
	}

	s.Logger.LogBooking("EVENT_DELETED", eventID, fmt.Sprintf("by=%s tickets=%d", who.UserID, deleted))
	s.afterCommit(ctx, models.InventoryUpdate{
		EventID: eventID,
		Reason:  models.InventoryReasonDeleted,
	}, func(ctx context.Context) error {
		return s.Publisher.PublishEventDeleted(ctx, eventID, who.UserID, deleted)
	})
	return nil
}

func (s *BookingService) newTicket(event *models.Event, buyerID string, quantity int) (*models.Ticket, error) {
	number := s.newTicketNumber()
	code, err := s.Codes.Code(event.ID, number)
	if err != nil {
		return nil, apperr.Internal("failed to issue check-in code", err)
	}

	now := time.Now().UTC()
	return &models.Ticket{
		ID:            uuid.NewString(),
		EventID:       event.ID,
		UserID:        buyerID,
		TicketNumber:  number,
		TicketType:    models.DefaultTicketType,
		Quantity:      quantity,
		UnitPrice:     event.TicketPrice,
		TotalPrice:    float64(quantity) * event.TicketPrice,
		BookingStatus: models.BookingStatusConfirmed,
		CheckInCode:   code,
		BookingDate:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// withRetry reruns op while it fails with a transient conflict. Exhausting the
// retries surfaces ConcurrencyConflict.
func (s *BookingService) withRetry(ctx context.Context, action, id string, op func() error) error {
	var err error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		err = op()
		if err == nil || !isRetryable(err) {
			return err
		}
		s.Logger.Warn("BOOKING", fmt.Sprintf("%s %s: attempt %d hit a conflict: %v", action, id, attempt+1, err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt+1)):
		}
	}
	return apperr.ConcurrencyConflict(fmt.Sprintf("%s could not complete after %d attempts: %v", action, s.MaxRetries+1, err))
}

// afterCommit pushes the inventory update to live subscribers and publishes
// the domain event. Neither can fail the already committed operation.
func (s *BookingService) afterCommit(ctx context.Context, update models.InventoryUpdate, publish func(ctx context.Context) error) {
	update.At = time.Now().UTC()
	if s.Inventory != nil {
		s.Inventory.Emit(update)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := publish(pubCtx); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for event %s: %v", update.Reason, update.EventID, err))
	}
}

// isRetryable reports lost conditional updates and PostgreSQL transaction
// rollbacks (SQLSTATE class 40: serialization failure, deadlock).
func isRetryable(err error) bool {
	if apperr.Is(err, apperr.KindConcurrencyConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "40"
	}
	return false
}

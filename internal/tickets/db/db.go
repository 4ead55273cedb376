package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
	"time"

	"github.com/uptrace/bun"
)

// DB works over *bun.DB or a bun.Tx.
type DB struct {
	Bun bun.IDB
}

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if _, err := d.Bun.NewInsert().Model(ticket).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", id, err)
	}
	return &ticket, nil
}

// GetTicketByNumber loads a ticket of eventID by its human-readable number.
func (d *DB) GetTicketByNumber(ctx context.Context, eventID, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("event_id = ?", eventID).
		Where("ticket_number = ?", number).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s not found", number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", number, err)
	}
	return &ticket, nil
}

// ListTicketsByUser returns the user's tickets with their events, newest first.
func (d *DB) ListTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Where("ticket.user_id = ?", userID).
		Order("ticket.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets for %s: %w", userID, err)
	}
	return tickets, nil
}

// ListConfirmed returns every confirmed ticket with its event, newest first.
func (d *DB) ListConfirmed(ctx context.Context) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Where("ticket.booking_status = ?", models.BookingStatusConfirmed).
		Order("ticket.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed tickets: %w", err)
	}
	return tickets, nil
}

// MarkCancelled moves a confirmed ticket to cancelled. It reports false when
// the ticket was no longer confirmed.
func (d *DB) MarkCancelled(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("booking_status = ?", models.BookingStatusCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("booking_status = ?", models.BookingStatusConfirmed).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to cancel ticket %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to cancel ticket %s: %w", id, err)
	}
	return n == 1, nil
}

// MarkCheckedIn records the first check-in of a confirmed ticket. It reports
// false when the ticket was already checked in or is not confirmed.
func (d *DB) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("checked_in = ?", true).
		Set("checked_in_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("checked_in = ?", false).
		Where("booking_status = ?", models.BookingStatusConfirmed).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check in ticket %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check in ticket %s: %w", id, err)
	}
	return n == 1, nil
}

// DeleteTicketsByEvent removes every ticket referencing eventID.
func (d *DB) DeleteTicketsByEvent(ctx context.Context, eventID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tickets for event %s: %w", eventID, err)
	}
	return res.RowsAffected()
}

func (d *DB) CountByEvent(ctx context.Context, eventID string) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets for event %s: %w", eventID, err)
	}
	return n, nil
}

// ConfirmedQuantity sums the quantity of confirmed tickets for eventID.
func (d *DB) ConfirmedQuantity(ctx context.Context, eventID string) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("event_id = ?", eventID).
		Where("booking_status = ?", models.BookingStatusConfirmed).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum tickets for event %s: %w", eventID, err)
	}
	return total, nil
}

// CheckedInQuantity sums the quantity of confirmed tickets already checked in.
func (d *DB) CheckedInQuantity(ctx context.Context, eventID string) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("event_id = ?", eventID).
		Where("booking_status = ?", models.BookingStatusConfirmed).
		Where("checked_in = ?", true).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum checked-in tickets for event %s: %w", eventID, err)
	}
	return total, nil
}

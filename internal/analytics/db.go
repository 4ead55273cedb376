package analytics

import (
	"context"
	"fmt"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// DB runs the read-only aggregate queries behind the admin dashboard.
type DB struct {
	Bun bun.IDB
}

func (d *DB) CountEvents(ctx context.Context) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func (d *DB) CountEventsByStatus(ctx context.Context, status string) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("status = ?", status).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", status, err)
	}
	return n, nil
}

// Totals are confirmed-ticket aggregates.
type Totals struct {
	Bookings int     `bun:"bookings"`
	Tickets  int     `bun:"tickets"`
	Revenue  float64 `bun:"revenue"`
}

// ConfirmedTotals aggregates confirmed tickets, optionally for one event.
func (d *DB) ConfirmedTotals(ctx context.Context, eventID string) (Totals, error) {
	var totals Totals
	q := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COUNT(*) AS bookings").
		ColumnExpr("COALESCE(SUM(quantity), 0) AS tickets").
		ColumnExpr("COALESCE(SUM(total_price), 0.0) AS revenue").
		Where("booking_status = ?", models.BookingStatusConfirmed)
	if eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	if err := q.Scan(ctx, &totals); err != nil {
		return totals, fmt.Errorf("failed to aggregate confirmed tickets: %w", err)
	}
	return totals, nil
}

// ConfirmedTickets lists confirmed tickets for eventID, oldest booking first.
func (d *DB) ConfirmedTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Where("booking_status = ?", models.BookingStatusConfirmed).
		Order("booking_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed tickets for event %s: %w", eventID, err)
	}
	return tickets, nil
}

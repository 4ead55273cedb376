// Package db is the bun-backed Event store. Every inventory mutation is a
// single conditional UPDATE so concurrent writers can never drive
// tickets_available outside [0, capacity].
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// DB works over *bun.DB or a bun.Tx.
type DB struct {
	Bun bun.IDB
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return &event, nil
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if _, err := d.Bun.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// UpdateEventDetails writes the given metadata columns. Inventory columns and
// created_by are rejected; they have their own conditional updates.
func (d *DB) UpdateEventDetails(ctx context.Context, event *models.Event, columns ...string) error {
	for _, c := range columns {
		switch c {
		case "capacity", "tickets_available", "created_by", "views", "id":
			return fmt.Errorf("column %s cannot be updated as event details", c)
		}
	}
	event.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	res, err := d.Bun.NewUpdate().
		Model(event).
		Column(columns...).
		Where("id = ?", event.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", event.ID, err)
	}
	return expectOne(res, event.ID)
}

// ReserveTickets decrements tickets_available by quantity only if enough remain.
// It reports false, with no change, when the guard fails.
func (d *DB) ReserveTickets(ctx context.Context, eventID string, quantity int) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_available = tickets_available - ?", quantity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Where("tickets_available >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve tickets for event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reserve tickets for event %s: %w", eventID, err)
	}
	return n == 1, nil
}

// ReleaseTickets increments tickets_available by quantity, capped at capacity.
func (d *DB) ReleaseTickets(ctx context.Context, eventID string, quantity int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_available = CASE WHEN tickets_available + ? > capacity THEN capacity ELSE tickets_available + ? END", quantity, quantity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release tickets for event %s: %w", eventID, err)
	}
	return expectOne(res, eventID)
}

// SetCapacity changes capacity and shifts tickets_available by the same delta,
// so the number already sold is preserved. A capacity below what has been sold
// is rejected as invalid input.
func (d *DB) SetCapacity(ctx context.Context, eventID string, capacity int) error {
	if capacity < 1 {
		return apperr.InvalidInput("capacity", "capacity must be at least 1")
	}
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_available = ? - (capacity - tickets_available)", capacity).
		Set("capacity = ?", capacity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Where("(capacity - tickets_available) <= ?", capacity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set capacity for event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set capacity for event %s: %w", eventID, err)
	}
	if n == 1 {
		return nil
	}

	exists, err := d.Bun.NewSelect().Model((*models.Event)(nil)).Where("id = ?", eventID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	if !exists {
		return apperr.NotFound("event %s not found", eventID)
	}
	return apperr.InvalidInput("capacity", "capacity cannot be lower than the number of tickets already sold")
}

// SetTicketsAvailable overwrites the counter, clamped into [0, capacity].
func (d *DB) SetTicketsAvailable(ctx context.Context, eventID string, available int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_available = CASE WHEN ? < 0 THEN 0 WHEN ? > capacity THEN capacity ELSE ? END", available, available, available).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set tickets available for event %s: %w", eventID, err)
	}
	return expectOne(res, eventID)
}

// Inventory returns the current counter and capacity.
func (d *DB) Inventory(ctx context.Context, eventID string) (available, capacity int, err error) {
	err = d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Column("tickets_available", "capacity").
		Where("id = ?", eventID).
		Scan(ctx, &available, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, apperr.NotFound("event %s not found", eventID)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read inventory for event %s: %w", eventID, err)
	}
	return available, capacity, nil
}

func (d *DB) IncrementViews(ctx context.Context, eventID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("views = views + 1").
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment views for event %s: %w", eventID, err)
	}
	return nil
}

func (d *DB) UpdateStatus(ctx context.Context, eventID, status string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update status for event %s: %w", eventID, err)
	}
	return expectOne(res, eventID)
}

func (d *DB) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return expectOne(res, eventID)
}

// ListEvents returns every event, newest first.
func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := d.Bun.NewSelect().
		Model(&events).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// SearchEvents matches q case-insensitively against title, description and
// location, soonest event first.
func (d *DB) SearchEvents(ctx context.Context, q string) ([]models.Event, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	events := make([]models.Event, 0)
	err := d.Bun.NewSelect().
		Model(&events).
		WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				WhereOr("LOWER(title) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(description) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(location) LIKE ? ESCAPE '!'", pattern)
		}).
		Order("event_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	return events, nil
}

// FeaturedEvents returns a random sample of at most limit events.
func (d *DB) FeaturedEvents(ctx context.Context, limit int) ([]models.Event, error) {
	events := make([]models.Event, 0, limit)
	err := d.Bun.NewSelect().
		Model(&events).
		OrderExpr("RANDOM()").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load featured events: %w", err)
	}
	return events, nil
}

func (d *DB) ListByCreator(ctx context.Context, userID string) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := d.Bun.NewSelect().
		Model(&events).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", userID, err)
	}
	return events, nil
}

// SalesByEvent sums non-cancelled ticket quantity and revenue per event id.
func (d *DB) SalesByEvent(ctx context.Context, eventIDs []string) (map[string]models.EventSales, error) {
	out := make(map[string]models.EventSales, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		EventID     string  `bun:"event_id"`
		TicketsSold int     `bun:"tickets_sold"`
		Revenue     float64 `bun:"revenue"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("event_id").
		ColumnExpr("COALESCE(SUM(quantity), 0) AS tickets_sold").
		ColumnExpr("COALESCE(SUM(total_price), 0.0) AS revenue").
		Where("event_id IN (?)", bun.In(eventIDs)).
		Where("booking_status != ?", models.BookingStatusCancelled).
		Group("event_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	for _, r := range rows {
		out[r.EventID] = models.EventSales{TicketsSold: r.TicketsSold, Revenue: r.Revenue}
	}
	return out, nil
}

func expectOne(res sql.Result, eventID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for event %s: %w", eventID, err)
	}
	if n == 0 {
		return apperr.NotFound("event %s not found", eventID)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}

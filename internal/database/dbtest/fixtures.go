package dbtest

import (
	"context"
	"ms-booking/internal/models"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// SeedEvent inserts an event owned by createdBy with the given capacity, all of
// it available. opts may adjust the event before insert.
func SeedEvent(t testing.TB, db bun.IDB, createdBy string, capacity int, opts ...func(*models.Event)) *models.Event {
	t.Helper()

	now := time.Now().UTC()
	event := &models.Event{
		ID:                 uuid.NewString(),
		Title:              "Jazz Night",
		Description:        "An evening of live jazz",
		Category:           "music",
		Tags:               []string{"jazz", "live"},
		ImageURL:           models.DefaultImageURL,
		EventDate:          now.Add(7 * 24 * time.Hour),
		EventTime:          "19:30",
		LocationType:       "venue",
		Location:           "Blue Note, Berlin",
		Capacity:           capacity,
		TicketsAvailable:   capacity,
		TicketPrice:        25,
		MaxTicketsPerOrder: models.DefaultMaxTicketsPerOrder,
		Status:             models.EventStatusUpcoming,
		Visibility:         "public",
		CreatedBy:          createdBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, opt := range opts {
		opt(event)
	}

	_, err := db.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
	return event
}

// SeedTicket inserts a ticket for event bought by userID.
func SeedTicket(t testing.TB, db bun.IDB, event *models.Event, userID string, quantity int, status string) *models.Ticket {
	t.Helper()

	now := time.Now().UTC()
	id := uuid.NewString()
	ticket := &models.Ticket{
		ID:            id,
		EventID:       event.ID,
		UserID:        userID,
		TicketNumber:  "TKT-" + id,
		TicketType:    models.DefaultTicketType,
		Quantity:      quantity,
		UnitPrice:     event.TicketPrice,
		TotalPrice:    float64(quantity) * event.TicketPrice,
		BookingStatus: status,
		CheckInCode:   "code-" + id,
		BookingDate:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := db.NewInsert().Model(ticket).Exec(context.Background())
	require.NoError(t, err)
	return ticket
}

package booking_api

import (
	"encoding/json"
	"io"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"
	"ms-booking/internal/tickets/checkin"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type envelope struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	Field     string          `json:"field"`
	Remaining *int            `json:"remaining"`
	Data      json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*bun.DB, http.Handler) {
	db := dbtest.NewSQLite(t)
	log := logger.NewConsoleLogger(io.Discard)
	codes, err := checkin.NewGenerator("test-secret")
	require.NoError(t, err)
	svc := booking.NewBookingService(booking.BunUnitOfWork{DB: db}, codes, kafka.NopPublisher{}, sse.NewInventoryEmitter(), log, 3)
	h := NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := r.Header.Get("X-User"); user != "" {
				r = r.WithContext(auth.WithIdentity(r.Context(), models.Identity{UserID: user}))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/api/events/{eventId}/book", h.BookTickets)
	r.Post("/api/events/tickets/{ticketId}/cancel", h.CancelTicket)
	return db, r
}

func do(t *testing.T, h http.Handler, path, user, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestBookAndCancel(t *testing.T) {
	db, h := setup(t)
	event := dbtest.SeedEvent(t, db, "org-1", 5)

	rec, env := do(t, h, "/api/events/"+event.ID+"/book", "buyer-1", `{"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	var result models.BookingResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 3, result.EventTicketsAvailable)
	assert.Equal(t, 2, result.Ticket.Quantity)
	assert.InDelta(t, 50.0, result.Ticket.TotalPrice, 0.001)

	rec, _ = do(t, h, "/api/events/tickets/"+result.Ticket.ID+"/cancel", "someone-else", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = do(t, h, "/api/events/tickets/"+result.Ticket.ID+"/cancel", "buyer-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, models.BookingStatusCancelled, cancelled.BookingStatus)

	rec, env = do(t, h, "/api/events/tickets/"+result.Ticket.ID+"/cancel", "buyer-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_operation", env.Error)
}

func TestEmptyBodyBooksOneTicket(t *testing.T) {
	db, h := setup(t)
	event := dbtest.SeedEvent(t, db, "org-1", 5)

	rec, env := do(t, h, "/api/events/"+event.ID+"/book", "buyer-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var result models.BookingResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Ticket.Quantity)
}

func TestChunkedEmptyBodyBooksOneTicket(t *testing.T) {
	db, h := setup(t)
	event := dbtest.SeedEvent(t, db, "org-1", 5)

	req := httptest.NewRequest(http.MethodPost, "/api/events/"+event.ID+"/book", io.NopCloser(strings.NewReader("")))
	require.Equal(t, int64(-1), req.ContentLength)
	req.Header.Set("X-User", "buyer-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var result models.BookingResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Ticket.Quantity)
}

func TestBookingErrors(t *testing.T) {
	db, h := setup(t)
	event := dbtest.SeedEvent(t, db, "org-1", 2)

	rec, env := do(t, h, "/api/events/"+event.ID+"/book", "buyer-1", `{"quantity":3}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_inventory", env.Error)
	require.NotNil(t, env.Remaining)
	assert.Equal(t, 2, *env.Remaining)

	rec, env = do(t, h, "/api/events/"+event.ID+"/book", "buyer-1", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity", env.Field)

	rec, env = do(t, h, "/api/events/"+event.ID+"/book", "buyer-1", `{"quantity":"two"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity", env.Field)

	rec, _ = do(t, h, "/api/events/"+event.ID+"/book", "org-1", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, "/api/events/missing/book", "buyer-1", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, "/api/events/"+event.ID+"/book", "", `{"quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

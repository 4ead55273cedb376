package analytics_api

import (
	"encoding/json"
	"io"
	"ms-booking/internal/analytics"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/events"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
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
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*bun.DB, http.Handler) {
	db := dbtest.NewSQLite(t)
	log := logger.NewConsoleLogger(io.Discard)
	codes, err := checkin.NewGenerator("test-secret")
	require.NoError(t, err)
	bookings := booking.NewBookingService(booking.BunUnitOfWork{DB: db}, codes, kafka.NopPublisher{}, nil, log, 3)
	h := NewHandler(analytics.NewService(db, log), events.NewService(db, bookings, nil, log), log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := r.Header.Get("X-User"); user != "" {
				who := models.Identity{UserID: user, IsAdmin: user == "admin-1"}
				r = r.WithContext(auth.WithIdentity(r.Context(), who))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api", h.RegisterRoutes)
	return db, r
}

func do(t *testing.T, h http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-User", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestCheckAdmin(t *testing.T) {
	_, h := setup(t)

	rec, _ := do(t, h, http.MethodGet, "/api/admin/check", "admin-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/api/admin/check", "user-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error)
}

func TestAdminModeration(t *testing.T) {
	db, h := setup(t)
	event := dbtest.SeedEvent(t, db, "org-1", 10)
	dbtest.SeedTicket(t, db, event, "buyer-1", 2, models.BookingStatusConfirmed)

	rec, env := do(t, h, http.MethodPatch, "/api/admin/events/"+event.ID+"/status", "admin-1", `{"status":"ongoing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Event
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, models.EventStatusOngoing, updated.Status)

	rec, _ = do(t, h, http.MethodPatch, "/api/admin/events/"+event.ID+"/status", "admin-1", `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/admin/stats", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.DashboardStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.TicketsSold)

	rec, _ = do(t, h, http.MethodGet, "/api/admin/events/"+event.ID+"/revenue", "org-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/admin/events/"+event.ID, "org-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, h, http.MethodDelete, "/api/admin/events/"+event.ID, "admin-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/admin/tickets/sales", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sales []models.Ticket
	require.NoError(t, json.Unmarshal(env.Data, &sales))
	assert.Empty(t, sales)
}

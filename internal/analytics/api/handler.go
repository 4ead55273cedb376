package analytics_api

import (
	"fmt"
	"ms-booking/internal/access"
	"ms-booking/internal/analytics"
	"ms-booking/internal/auth"
	"ms-booking/internal/events"
	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler serves the admin dashboard. Callers must already be authenticated;
// each endpoint applies its own admin or owner check.
type Handler struct {
	Service *analytics.Service
	Events  *events.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, eventService *events.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Events: eventService, Logger: log}
}

// RegisterRoutes mounts the admin routes under the current router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/check", h.CheckAdmin)
		r.Get("/stats", h.GetStats)
		r.Get("/events", h.ListEvents)
		r.Delete("/events/{id}", h.DeleteEvent)
		r.Patch("/events/{id}/status", h.UpdateEventStatus)
		r.Get("/events/{id}/revenue", h.GetEventRevenue)
		r.Get("/tickets/sales", h.GetTicketSales)
	})
}

func (h *Handler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	if err := access.RequireAdmin(who); err != nil {
		h.Logger.LogSecurity("ADMIN_DENIED", fmt.Sprintf("user=%s path=%s", who.UserID, r.URL.Path))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Admin verified", map[string]bool{"admin": true}))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	stats, err := h.Service.Stats(r.Context(), who)
	if err != nil {
		h.fail(w, "GetStats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Stats retrieved", stats))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	list, err := h.Service.AllEvents(r.Context(), who)
	if err != nil {
		h.fail(w, "ListEvents", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events retrieved", list))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	if err := access.RequireAdmin(who); err != nil {
		utils.WriteError(w, err)
		return
	}
	eventID := chi.URLParam(r, "id")
	if err := h.Events.DeleteEvent(r.Context(), who, eventID); err != nil {
		h.fail(w, "DeleteEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event deleted successfully", map[string]string{"eventId": eventID}))
}

func (h *Handler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	who, _ := auth.FromContext(r.Context())
	event, err := h.Events.UpdateEventStatus(r.Context(), who, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.fail(w, "UpdateEventStatus", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event status updated", event))
}

func (h *Handler) GetEventRevenue(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	revenue, err := h.Service.EventRevenue(r.Context(), who, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "GetEventRevenue", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Revenue retrieved", revenue))
}

func (h *Handler) GetTicketSales(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	sales, err := h.Service.TicketSales(r.Context(), who)
	if err != nil {
		h.fail(w, "GetTicketSales", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket sales retrieved", sales))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, _ := utils.ErrorResponseFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

package booking_api

import (
	"fmt"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *booking.BookingService
	Logger  *logger.Logger
}

func NewHandler(service *booking.BookingService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

type bookRequest struct {
	Quantity *int `json:"quantity"`
}

// BookTickets handles POST /api/events/{eventId}/book. An empty body books one ticket.
func (h *Handler) BookTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	quantity := 1
	var req bookRequest
	if err := utils.DecodeJSON(r, &req); err != nil && !utils.IsEmptyBody(err) {
		utils.WriteError(w, err)
		return
	}
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	result, err := h.Service.BookTickets(r.Context(), eventID, auth.UserID(r.Context()), quantity)
	if err != nil {
		h.Logger.Debug("API", fmt.Sprintf("BookTickets: event=%s qty=%d: %v", eventID, quantity, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Ticket booked successfully", result))
}

// CancelTicket handles POST /api/events/tickets/{ticketId}/cancel.
func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	ticket, err := h.Service.CancelTicket(r.Context(), ticketID, auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Debug("API", fmt.Sprintf("CancelTicket: ticket=%s: %v", ticketID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket cancelled successfully", ticket))
}

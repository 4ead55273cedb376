package ticket_api

import (
	"fmt"
	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	tickets "ms-booking/internal/tickets/service"
	"ms-booking/internal/utils"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	list, err := h.TicketService.ListMyTickets(r.Context(), who)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyTickets: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Your tickets", list))
}

// TicketQR serves the ticket's check-in code as a PNG image.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	img, err := h.TicketService.TicketQR(r.Context(), who, chi.URLParam(r, "ticketId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// CheckinTicket verifies a scanned code. Expected body: {"code": "..."}.
func (h *Handler) CheckinTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}

	who, _ := auth.FromContext(r.Context())
	result, err := h.TicketService.VerifyCheckIn(r.Context(), who, body.Code)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	message := "Check-in successful"
	if result.AlreadyChecked {
		message = "Ticket was already checked in"
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, result))
}

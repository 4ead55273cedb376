package ticket_api

import (
	"ms-booking/internal/auth"
	"ms-booking/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Attendance handles GET /api/events/{eventId}/attendance for the organizer.
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	summary, err := h.TicketService.Attendance(r.Context(), who, chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Attendance retrieved", summary))
}

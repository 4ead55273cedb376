package event_api

import (
	"fmt"
	"ms-booking/internal/auth"
	"ms-booking/internal/events"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *events.Service
	Logger  *logger.Logger
}

func NewHandler(service *events.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListEvents(r.Context())
	if err != nil {
		h.fail(w, "ListEvents", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events retrieved", list))
}

func (h *Handler) FeaturedEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.FeaturedEvents(r.Context())
	if err != nil {
		h.fail(w, "FeaturedEvents", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Featured events retrieved", list))
}

func (h *Handler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.SearchEvents(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, "SearchEvents", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Search results", list))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, "GetEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event retrieved", event))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, _ := auth.FromContext(r.Context())

	event, err := h.Service.CreateEvent(r.Context(), who, in)
	if err != nil {
		h.fail(w, "CreateEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	who, _ := auth.FromContext(r.Context())

	event, err := h.Service.UpdateEvent(r.Context(), who, chi.URLParam(r, "eventId"), in)
	if err != nil {
		h.fail(w, "UpdateEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event updated", event))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	eventID := chi.URLParam(r, "eventId")

	if err := h.Service.DeleteEvent(r.Context(), who, eventID); err != nil {
		h.fail(w, "DeleteEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event deleted", map[string]string{"eventId": eventID}))
}

func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())
	list, err := h.Service.ListMyEvents(r.Context(), who)
	if err != nil {
		h.fail(w, "MyEvents", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Your events", list))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, _ := utils.ErrorResponseFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

package message_api

import (
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/messages"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *messages.Service
	Logger  *logger.Logger
}

func NewHandler(service *messages.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// Routes mounts the message endpoints. Callers must already be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.SendMessage)
	r.Get("/conversations", h.ListConversations)
	r.Get("/{userId}", h.GetConversation)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	senderID := auth.UserID(r.Context())
	if req.SenderID != "" && req.SenderID != senderID {
		utils.WriteError(w, apperr.Forbidden("cannot send messages as another user"))
		return
	}

	msg, err := h.Service.SendMessage(r.Context(), senderID, req.ReceiverID, req.Content)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("SendMessage: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Message sent", msg))
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "userId")
	history, err := h.Service.GetConversationHistory(r.Context(), auth.UserID(r.Context()), otherID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetConversation: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Messages retrieved", history))
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Service.ListConversationPartners(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListConversations: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Conversations retrieved", partners))
}

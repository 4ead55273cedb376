package event_api

import (
	"encoding/json"
	"fmt"
	"ms-booking/internal/apperr"
	eventdb "ms-booking/internal/events/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// SSEHandler streams inventory changes for one event.
type SSEHandler struct {
	Logger    *logger.Logger
	Emitter   *sse.InventoryEmitter
	Events    *eventdb.DB
	KeepAlive time.Duration
}

func NewSSEHandler(log *logger.Logger, emitter *sse.InventoryEmitter, events *eventdb.DB) *SSEHandler {
	return &SSEHandler{Logger: log, Emitter: emitter, Events: events, KeepAlive: 25 * time.Second}
}

// HandleInventory sends the current counter, then one "inventory" event per
// committed change until the client goes away or the event is deleted.
func (h *SSEHandler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, apperr.Internal("streaming unsupported", nil))
		return
	}

	ctx := r.Context()
	// Subscribe before reading the snapshot so no change falls in between.
	updates := h.Emitter.Subscribe(ctx, eventID)

	available, capacity, err := h.Events.Inventory(ctx, eventID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	h.setupSSEHeaders(w)
	// The stream outlives the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	h.write(w, "inventory", models.InventoryUpdate{
		EventID:          eventID,
		TicketsAvailable: available,
		Capacity:         capacity,
		At:               time.Now().UTC(),
	})
	flusher.Flush()
	h.Logger.Debug("SSE", fmt.Sprintf("client subscribed to inventory of event %s", eventID))

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.write(w, "inventory", update)
			flusher.Flush()
			if update.Reason == models.InventoryReasonDeleted {
				return
			}
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("client left inventory stream of event %s", eventID))
			return
		}
	}
}

func (h *SSEHandler) write(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("failed to serialize %s event: %v", event, err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

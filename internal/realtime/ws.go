// Package realtime carries presence and message frames over websockets.
package realtime

import (
	"context"
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/presence"
	"ms-booking/internal/utils"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxFrameSize = 16 << 10

type Handler struct {
	Relay   *presence.Relay
	Config  config.RealtimeConfig
	Origins []string
	Logger  *logger.Logger

	upgrader websocket.Upgrader
}

func NewHandler(relay *presence.Relay, cfg config.RealtimeConfig, origins []string, log *logger.Logger) *Handler {
	h := &Handler{Relay: relay, Config: cfg, Origins: origins, Logger: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.Origins, "*") {
		return true
	}
	return slices.Contains(h.Origins, origin)
}

// ServeWS upgrades an authenticated request and runs the connection until
// either side closes it.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.FromContext(r.Context())
	if !ok {
		utils.WriteError(w, apperr.Unauthorized("authentication required"))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.Logger.Warn("REALTIME", fmt.Sprintf("upgrade failed for %s: %v", who.UserID, err))
		return
	}

	c := newClient(ws, h.Config, h.Logger)
	session := h.Relay.Connect(c, who)

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go c.writePump()
	c.readPump(ctx, session)
}

type client struct {
	id     string
	ws     *websocket.Conn
	cfg    config.RealtimeConfig
	logger *logger.Logger

	send      chan models.OutboundFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(ws *websocket.Conn, cfg config.RealtimeConfig, log *logger.Logger) *client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 32
	}
	return &client{
		id:     uuid.NewString(),
		ws:     ws,
		cfg:    cfg,
		logger: log,
		send:   make(chan models.OutboundFrame, buffer),
		done:   make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send never blocks. A full buffer drops the frame.
func (c *client) Send(frame models.OutboundFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("REALTIME", fmt.Sprintf("send buffer full, dropping %s frame for conn=%s", frame.Type, c.id))
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *client) readPump(ctx context.Context, session *presence.Session) {
	defer func() {
		session.Close()
		c.close()
	}()

	c.ws.SetReadLimit(maxFrameSize)
	pongWait := c.pingInterval() * 2
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.InboundFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("REALTIME", fmt.Sprintf("conn=%s read: %v", c.id, err))
			}
			return
		}
		if err := session.Handle(ctx, frame); err != nil {
			c.Send(errorFrame(err))
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingInterval())
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout()))
			if err := c.ws.WriteJSON(frame); err != nil {
				c.logger.Debug("REALTIME", fmt.Sprintf("conn=%s write: %v", c.id, err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout()))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) pingInterval() time.Duration {
	if c.cfg.PingInterval > 0 {
		return c.cfg.PingInterval
	}
	return 30 * time.Second
}

func (c *client) writeTimeout() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return 10 * time.Second
}

func errorFrame(err error) models.OutboundFrame {
	kind := apperr.KindOf(err)
	message := "Internal server error"
	if e, ok := apperr.As(err); ok && kind != apperr.KindInternal {
		message = e.Message
	}
	return models.OutboundFrame{
		Type: models.FrameError,
		Data: models.ErrorPayload{Kind: string(kind), Message: message},
	}
}

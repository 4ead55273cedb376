package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"sync"
)

type State int

const (
	StateConnected State = iota
	StateIdentified
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	default:
		return "disconnected"
	}
}

// MessageRecorder durably stores a message and announces it once delivered.
type MessageRecorder interface {
	Record(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	Announce(ctx context.Context, msg *models.Message)
}

type Relay struct {
	Registry *Registry
	Messages MessageRecorder
	Logger   *logger.Logger
}

func NewRelay(registry *Registry, messages MessageRecorder, log *logger.Logger) *Relay {
	return &Relay{Registry: registry, Messages: messages, Logger: log}
}

// Connect registers a new connection authenticated as who.
func (r *Relay) Connect(c Conn, who models.Identity) *Session {
	r.Registry.Add(c)
	r.Logger.LogRealtime("CONNECT", who.UserID, fmt.Sprintf("conn=%s", c.ID()))
	return &Session{relay: r, conn: c, who: who, state: StateConnected}
}

// NotifyMessage pushes a stored message to its receiver if online.
func (r *Relay) NotifyMessage(msg *models.Message) {
	if c, ok := r.Registry.Lookup(msg.ReceiverID); ok {
		c.Send(models.OutboundFrame{Type: models.FrameReceiveMessage, Data: msg})
	}
}

func (r *Relay) broadcast(frame models.OutboundFrame) {
	for _, c := range r.Registry.Peers() {
		c.Send(frame)
	}
}

func (r *Relay) broadcastOnline() {
	r.broadcast(models.OutboundFrame{Type: models.FrameUsersOnline, Data: r.Registry.OnlineUsers()})
}

// Session is the relay's view of one connection.
type Session struct {
	relay *Relay
	conn  Conn
	who   models.Identity

	mu     sync.Mutex
	state  State
	userID string
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identify binds the connection to userID, which must be the authenticated
// user, and tells every peer who is online.
func (s *Session) Identify(userID string) error {
	if userID == "" {
		return apperr.InvalidInput("userId", "userId is required")
	}
	if userID != s.who.UserID {
		return apperr.Forbidden("cannot identify as another user")
	}

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return apperr.InvalidOperation("connection is closed")
	}
	s.state = StateIdentified
	s.userID = userID
	s.mu.Unlock()

	if prev := s.relay.Registry.Identify(userID, s.conn); prev != nil {
		s.relay.Logger.LogRealtime("REPLACE", userID, fmt.Sprintf("conn=%s replaces conn=%s", s.conn.ID(), prev.ID()))
	}
	s.relay.Logger.LogRealtime("IDENTIFY", userID, fmt.Sprintf("conn=%s", s.conn.ID()))
	s.relay.broadcastOnline()
	return nil
}

// SendMessage stores the message, delivers it to the receiver if online and
// acknowledges it to the sender.
func (s *Session) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	s.mu.Lock()
	state, userID := s.state, s.userID
	s.mu.Unlock()

	if state != StateIdentified {
		return nil, apperr.InvalidOperation("identify before sending messages")
	}
	if req.SenderID != "" && req.SenderID != userID {
		return nil, apperr.Forbidden("cannot send messages as another user")
	}

	msg, err := s.relay.Messages.Record(ctx, userID, req.ReceiverID, req.Content)
	if err != nil {
		return nil, err
	}

	s.relay.NotifyMessage(msg)
	s.conn.Send(models.OutboundFrame{Type: models.FrameMessageSent, Data: msg})
	s.relay.Messages.Announce(ctx, msg)
	return msg, nil
}

// Handle dispatches one inbound frame.
func (s *Session) Handle(ctx context.Context, frame models.InboundFrame) error {
	switch frame.Type {
	case models.FrameIdentify:
		var p models.IdentifyPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			// clients may send the bare user id string
			var id string
			if err := json.Unmarshal(frame.Data, &id); err != nil {
				return apperr.InvalidInput("data", "identify expects {userId}")
			}
			p.UserID = id
		}
		return s.Identify(p.UserID)
	case models.FrameSendMessage:
		var req models.SendMessageRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return apperr.InvalidInput("data", "send_message expects {senderId, receiverId, content}")
		}
		_, err := s.SendMessage(ctx, req)
		return err
	default:
		return apperr.InvalidInput("type", fmt.Sprintf("unknown frame type %q", frame.Type))
	}
}

// Close handles transport closure. Peers learn the user went offline only if
// this was still the user's current connection.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	userID, wentOffline := s.relay.Registry.Remove(s.conn)
	s.relay.Logger.LogRealtime("DISCONNECT", s.who.UserID, fmt.Sprintf("conn=%s", s.conn.ID()))
	if !wentOffline {
		return
	}
	s.relay.broadcastOnline()
	s.relay.broadcast(models.OutboundFrame{Type: models.FrameUserDisconnected, Data: userID})
}

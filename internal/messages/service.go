// Package messages stores direct messages between users and hands them to
// the realtime relay for live delivery.
package messages

import (
	"context"
	"fmt"
	"ms-booking/internal/apperr"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	Conversation(ctx context.Context, a, b string) ([]models.Message, error)
	ConversationPartners(ctx context.Context, userID string) ([]models.ConversationPartner, error)
}

type Publisher interface {
	PublishMessageSent(ctx context.Context, msg *models.Message) error
}

// Notifier pushes a stored message to its receiver's live connection, if any.
type Notifier interface {
	NotifyMessage(msg *models.Message)
}

const publishTimeout = 3 * time.Second

type Service struct {
	Store     Store
	Publisher Publisher
	Logger    *logger.Logger
	// PublishTimeout bounds each background message-sent publish.
	PublishTimeout time.Duration

	mu       sync.RWMutex
	notifier Notifier
	inflight sync.WaitGroup
}

func NewService(store Store, publisher Publisher, log *logger.Logger) *Service {
	return &Service{Store: store, Publisher: publisher, Logger: log, PublishTimeout: publishTimeout}
}

// SetNotifier attaches the realtime relay once it has been built.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Record validates and durably stores a message. It neither pushes nor
// publishes it.
func (s *Service) Record(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	if senderID == "" {
		return nil, apperr.Unauthorized("you must be logged in to send messages")
	}
	if strings.TrimSpace(receiverID) == "" {
		return nil, apperr.InvalidInput("receiverId", "receiverId is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.InvalidInput("content", "message content cannot be empty")
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: strings.TrimSpace(receiverID),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to store message", err)
	}
	return msg, nil
}

// Announce publishes msg in the background. A slow or failing broker is
// logged and never holds up the caller.
func (s *Service) Announce(ctx context.Context, msg *models.Message) {
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = publishTimeout
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.Publisher.PublishMessageSent(pubCtx, msg); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish message %s: %v", msg.ID, err))
		}
	}()
}

// Flush waits for background publishes started by Announce.
func (s *Service) Flush() {
	s.inflight.Wait()
}

// SendMessage stores the message and pushes it to the receiver when online.
// The push is best effort: the message is already stored either way.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	msg, err := s.Record(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	if n != nil {
		n.NotifyMessage(msg)
	}
	s.Announce(ctx, msg)
	return msg, nil
}

func (s *Service) GetConversationHistory(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("you must be logged in to read messages")
	}
	if otherID == "" {
		return nil, apperr.InvalidInput("userId", "userId is required")
	}
	msgs, err := s.Store.Conversation(ctx, userID, otherID)
	if err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}
	return msgs, nil
}

func (s *Service) ListConversationPartners(ctx context.Context, userID string) ([]models.ConversationPartner, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("you must be logged in to read messages")
	}
	partners, err := s.Store.ConversationPartners(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load conversations", err)
	}
	return partners, nil
}

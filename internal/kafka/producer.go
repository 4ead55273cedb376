package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope wraps every domain event published by the service.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type TicketEvent struct {
	Ticket                *models.Ticket `json:"ticket"`
	EventTicketsAvailable int            `json:"eventTicketsAvailable"`
}

type EventDeleted struct {
	EventID        string `json:"eventId"`
	DeletedBy      string `json:"deletedBy"`
	TicketsDeleted int64  `json:"ticketsDeleted"`
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) PublishTicketBooked(ctx context.Context, ticket *models.Ticket, available int) error {
	return p.publish(ctx, p.Topics.TicketBooked, ticket.EventID, "ticket.booked",
		TicketEvent{Ticket: ticket, EventTicketsAvailable: available})
}

func (p *Producer) PublishTicketCancelled(ctx context.Context, ticket *models.Ticket, available int) error {
	return p.publish(ctx, p.Topics.TicketCancelled, ticket.EventID, "ticket.cancelled",
		TicketEvent{Ticket: ticket, EventTicketsAvailable: available})
}

func (p *Producer) PublishEventDeleted(ctx context.Context, eventID, deletedBy string, ticketsDeleted int64) error {
	return p.publish(ctx, p.Topics.EventDeleted, eventID, "event.deleted",
		EventDeleted{EventID: eventID, DeletedBy: deletedBy, TicketsDeleted: ticketsDeleted})
}

// PublishMessageSent keys by receiver so a user's inbox stays ordered.
func (p *Producer) PublishMessageSent(ctx context.Context, msg *models.Message) error {
	return p.publish(ctx, p.Topics.MessageSent, msg.ReceiverID, "message.sent", msg)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

func (p *Producer) publish(ctx context.Context, topic, key, eventType string, data any) error {
	value, err := json.Marshal(Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s key=%s", eventType, key))
	return nil
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTicketBooked(context.Context, *models.Ticket, int) error    { return nil }
func (NopPublisher) PublishTicketCancelled(context.Context, *models.Ticket, int) error { return nil }
func (NopPublisher) PublishEventDeleted(context.Context, string, string, int64) error  { return nil }
func (NopPublisher) PublishMessageSent(context.Context, *models.Message) error         { return nil }

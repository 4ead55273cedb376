package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Message struct {
	bun.BaseModel `bun:"table:messages"`

	ID         string    `bun:"id,pk" json:"id"`
	SenderID   string    `bun:"sender_id,notnull" json:"senderId"`
	ReceiverID string    `bun:"receiver_id,notnull" json:"receiverId"`
	Content    string    `bun:"content,notnull" json:"content"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`
}

type SendMessageRequest struct {
	SenderID   string `json:"senderId,omitempty"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// ConversationPartner is someone the user has exchanged messages with.
type ConversationPartner struct {
	UserID        string    `bun:"partner_id" json:"userId"`
	LastMessageAt time.Time `bun:"last_message_at" json:"lastMessageAt"`
}

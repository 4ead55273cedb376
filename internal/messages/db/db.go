package db

import (
	"context"
	"fmt"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	if _, err := d.Bun.NewInsert().Model(msg).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Conversation returns the messages between a and b in either direction,
// oldest first.
func (d *DB) Conversation(ctx context.Context, a, b string) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	err := d.Bun.NewSelect().
		Model(&messages).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("sender_id = ? AND receiver_id = ?", a, b).
				WhereOr("sender_id = ? AND receiver_id = ?", b, a)
		}).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return messages, nil
}

// ConversationPartners lists everyone userID has messaged or been messaged
// by, most recent conversation first.
func (d *DB) ConversationPartners(ctx context.Context, userID string) ([]models.ConversationPartner, error) {
	partners := make([]models.ConversationPartner, 0)
	err := d.Bun.NewSelect().
		Model((*models.Message)(nil)).
		ColumnExpr("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id", userID).
		ColumnExpr("MAX(created_at) AS last_message_at").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("sender_id = ?", userID).
				WhereOr("receiver_id = ?", userID)
		}).
		GroupExpr("partner_id").
		OrderExpr("last_message_at DESC").
		Scan(ctx, &partners)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation partners: %w", err)
	}
	return partners, nil
}

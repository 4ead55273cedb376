package database

import (
	"context"
	"fmt"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema creates the marketplace tables from the bun models. Production
// databases are migrated from ./migrations instead; this is for embedded
// databases such as the sqlite used by tests.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []interface{}{
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.Message)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   interface{}
		name    string
		columns []string
	}{
		{(*models.Event)(nil), "idx_events_created_by", []string{"created_by"}},
		{(*models.Event)(nil), "idx_events_event_date", []string{"event_date"}},
		{(*models.Ticket)(nil), "idx_tickets_event_id", []string{"event_id"}},
		{(*models.Ticket)(nil), "idx_tickets_user_id", []string{"user_id"}},
		{(*models.Message)(nil), "idx_messages_pair", []string{"sender_id", "receiver_id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

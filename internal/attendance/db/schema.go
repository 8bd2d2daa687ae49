package db

import (
	"context"
	"fmt"

	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema builds the tables from the bun models. It backs SQLite
// development databases and tests; Postgres schemas come from migrations/.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Participant)(nil),
		(*models.Event)(nil),
		(*models.EventParticipant)(nil),
		(*models.NoShowHistory)(nil),
		(*models.BlocklistEntry)(nil),
		(*models.Volunteer)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.NoShowHistory)(nil)).
		Index("no_show_history_participant_event_key").
		Unique().
		IfNotExists().
		Column("participant_id", "event_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create no_show_history index: %w", err)
	}
	return nil
}

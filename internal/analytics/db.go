package analytics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
)

// DB handles the read-only queries behind the dashboard and the exports
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// Counts are the dashboard totals across every event.
type Counts struct {
	Participants int
	Attended     int
	NoShows      int
	Blocklisted  int
	Events       int
}

func (db *DB) GetCounts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error

	if c.Participants, err = db.bun.NewSelect().Model((*models.Participant)(nil)).Count(ctx); err != nil {
		return c, err
	}
	if c.Attended, err = db.countLinksByStatus(ctx, models.StatusAttended); err != nil {
		return c, err
	}
	if c.NoShows, err = db.countLinksByStatus(ctx, models.StatusNoShow); err != nil {
		return c, err
	}
	if c.Blocklisted, err = db.bun.NewSelect().Model((*models.BlocklistEntry)(nil)).Count(ctx); err != nil {
		return c, err
	}
	if c.Events, err = db.bun.NewSelect().Model((*models.Event)(nil)).Count(ctx); err != nil {
		return c, err
	}
	return c, nil
}

func (db *DB) countLinksByStatus(ctx context.Context, status models.AttendanceStatus) (int, error) {
	return db.bun.NewSelect().
		Model((*models.EventParticipant)(nil)).
		Where("ep.status = ?", status).
		Count(ctx)
}

// EventAggregate is one row of the event history table.
type EventAggregate struct {
	ID                string    `bun:"id" json:"id"`
	Name              string    `bun:"name" json:"name"`
	EventDate         time.Time `bun:"event_date" json:"eventDate"`
	TotalParticipants int       `bun:"total_participants" json:"totalParticipants"`
	Attended          int       `bun:"attended" json:"attended"`
	NoShows           int       `bun:"no_shows" json:"noShows"`
	Flagged           int       `bun:"flagged" json:"flagged"`
}

// GetEventAggregates counts link statuses per event, newest event first.
func (db *DB) GetEventAggregates(ctx context.Context) ([]EventAggregate, error) {
	var rows []EventAggregate
	err := db.bun.NewRaw(`
		SELECT
			e.id,
			e.name,
			e.event_date,
			COUNT(ep.id) AS total_participants,
			COALESCE(SUM(CASE WHEN ep.status = ? THEN 1 ELSE 0 END), 0) AS attended,
			COALESCE(SUM(CASE WHEN ep.status = ? THEN 1 ELSE 0 END), 0) AS no_shows,
			COALESCE(SUM(CASE WHEN ep.flagged_blocklist THEN 1 ELSE 0 END), 0) AS flagged
		FROM
			events AS e
		LEFT JOIN
			event_participants AS ep ON ep.event_id = e.id
		GROUP BY
			e.id, e.name, e.event_date
		ORDER BY
			e.event_date DESC
	`, models.StatusAttended, models.StatusNoShow).Scan(ctx, &rows)

	return rows, err
}

func (db *DB) GetNoShowHistory(ctx context.Context) ([]models.NoShowHistory, error) {
	var rows []models.NoShowHistory
	err := db.bun.NewSelect().
		Model(&rows).
		Relation("Participant").
		Relation("Event").
		OrderExpr("h.recorded_at DESC").
		Scan(ctx)

	return rows, err
}

func (db *DB) GetBlocklist(ctx context.Context) ([]models.BlocklistEntry, error) {
	var entries []models.BlocklistEntry
	err := db.bun.NewSelect().
		Model(&entries).
		Relation("Participant").
		Relation("FirstNoShowEvent").
		OrderExpr("b.created_at DESC").
		Scan(ctx)

	return entries, err
}

func (db *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := db.bun.NewSelect().
		Model(&event).
		Where("e.id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("Event not found")
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEventParticipantsByStatus loads the links of one event in one status
// with their participants, ordered by name.
func (db *DB) GetEventParticipantsByStatus(ctx context.Context, eventID string, status models.AttendanceStatus) ([]models.EventParticipant, error) {
	var links []models.EventParticipant
	err := db.bun.NewSelect().
		Model(&links).
		Relation("Participant").
		Where("ep.event_id = ?", eventID).
		Where("ep.status = ?", status).
		OrderExpr("participant.full_name ASC, participant.email ASC").
		Scan(ctx)

	return links, err
}

// GetNoShowHistoryForParticipants returns every history row of the given
// participants across all events, most recent first.
func (db *DB) GetNoShowHistoryForParticipants(ctx context.Context, participantIDs []string) ([]models.NoShowHistory, error) {
	if len(participantIDs) == 0 {
		return []models.NoShowHistory{}, nil
	}

	var rows []models.NoShowHistory
	err := db.bun.NewSelect().
		Model(&rows).
		Relation("Participant").
		Relation("Event").
		Where("h.participant_id IN (?)", bun.In(participantIDs)).
		OrderExpr("h.recorded_at DESC").
		Scan(ctx)

	return rows, err
}

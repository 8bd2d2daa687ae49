package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// emailBatchSize keeps IN lists well below the bind-parameter limits of both
// Postgres and SQLite.
const emailBatchSize = 500

type DB struct {
	Bun       *bun.DB
	TxOptions *sql.TxOptions
}

// New wraps bunDB. Postgres transactions run at READ COMMITTED; SQLite keeps
// its default serialised writer.
func New(bunDB *bun.DB) *DB {
	d := &DB{Bun: bunDB}
	if bunDB.Dialect().Name() == dialect.PG {
		d.TxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return d
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx attendance.TxStore) error) error {
	return d.Bun.RunInTx(ctx, d.TxOptions, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, NewQueries(tx))
	})
}

// Queries implements attendance.TxStore over any bun handle.
type Queries struct {
	db bun.IDB
}

func NewQueries(db bun.IDB) *Queries {
	return &Queries{db: db}
}

type participantStateRow struct {
	ID             string    `bun:"id"`
	FullName       string    `bun:"full_name"`
	Email          string    `bun:"email"`
	Company        string    `bun:"company"`
	City           string    `bun:"city"`
	CreatedAt      time.Time `bun:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at"`
	NoShowCount    int       `bun:"no_show_count"`
	BlocklistCount int       `bun:"blocklist_count"`
}

const participantStateSQL = `
	SELECT
		p.id, p.full_name, p.email, p.company, p.city, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM no_show_history AS h WHERE h.participant_id = p.id) AS no_show_count,
		(SELECT COUNT(*) FROM blocklist_entries AS b WHERE b.participant_id = p.id) AS blocklist_count
	FROM participants AS p
	WHERE p.email IN (?)
`

func (q *Queries) FindParticipantStates(ctx context.Context, emails []string) ([]models.ParticipantState, error) {
	var states []models.ParticipantState
	for start := 0; start < len(emails); start += emailBatchSize {
		end := min(start+emailBatchSize, len(emails))

		var rows []participantStateRow
		if err := q.db.NewRaw(participantStateSQL, bun.In(emails[start:end])).Scan(ctx, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			states = append(states, models.ParticipantState{
				Participant: models.Participant{
					ID:        r.ID,
					FullName:  r.FullName,
					Email:     r.Email,
					Company:   r.Company,
					City:      r.City,
					CreatedAt: r.CreatedAt,
					UpdatedAt: r.UpdatedAt,
				},
				NoShowCount: r.NoShowCount,
				Blocklisted: r.BlocklistCount > 0,
			})
		}
	}
	return states, nil
}

func (q *Queries) CreateParticipant(ctx context.Context, p *models.Participant) error {
	_, err := q.db.NewInsert().Model(p).Exec(ctx)
	return err
}

func (q *Queries) UpdateParticipant(ctx context.Context, p *models.Participant) error {
	_, err := q.db.NewUpdate().
		Model(p).
		Column("full_name", "company", "city", "updated_at").
		Where("id = ?", p.ID).
		Exec(ctx)
	return err
}

func (q *Queries) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := q.db.NewInsert().Model(e).Exec(ctx)
	return err
}

func (q *Queries) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := q.db.NewSelect().
		Model(&event).
		Where("e.id = ?", id).
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

func (q *Queries) CreateEventParticipants(ctx context.Context, links []models.EventParticipant) error {
	if len(links) == 0 {
		return nil
	}
	_, err := q.db.NewInsert().Model(&links).Exec(ctx)
	return err
}

func (q *Queries) GetEventParticipant(ctx context.Context, eventID, participantID string) (*models.EventParticipant, error) {
	var link models.EventParticipant
	err := q.db.NewSelect().
		Model(&link).
		Where("ep.event_id = ?", eventID).
		Where("ep.participant_id = ?", participantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (q *Queries) CreateEventParticipant(ctx context.Context, link *models.EventParticipant) error {
	_, err := q.db.NewInsert().Model(link).Exec(ctx)
	return err
}

func (q *Queries) UpdateEventParticipant(ctx context.Context, link *models.EventParticipant) error {
	_, err := q.db.NewUpdate().
		Model(link).
		Column("status", "flagged_no_show", "flagged_blocklist", "updated_at").
		Where("id = ?", link.ID).
		Exec(ctx)
	return err
}

func (q *Queries) HasNoShow(ctx context.Context, participantID, eventID string) (bool, error) {
	return q.db.NewSelect().
		Model((*models.NoShowHistory)(nil)).
		Where("h.participant_id = ?", participantID).
		Where("h.event_id = ?", eventID).
		Exists(ctx)
}

func (q *Queries) CreateNoShow(ctx context.Context, h *models.NoShowHistory) error {
	_, err := q.db.NewInsert().Model(h).Exec(ctx)
	return err
}

func (q *Queries) CountNoShows(ctx context.Context, participantID string) (int, error) {
	return q.db.NewSelect().
		Model((*models.NoShowHistory)(nil)).
		Where("h.participant_id = ?", participantID).
		Count(ctx)
}

func (q *Queries) FirstNoShow(ctx context.Context, participantID string) (*models.NoShowHistory, error) {
	var h models.NoShowHistory
	err := q.db.NewSelect().
		Model(&h).
		Relation("Event").
		Where("h.participant_id = ?", participantID).
		OrderExpr("h.recorded_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (q *Queries) GetBlocklistEntry(ctx context.Context, participantID string) (*models.BlocklistEntry, error) {
	var entry models.BlocklistEntry
	err := q.db.NewSelect().
		Model(&entry).
		Where("b.participant_id = ?", participantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (q *Queries) CreateBlocklistEntry(ctx context.Context, e *models.BlocklistEntry) error {
	_, err := q.db.NewInsert().Model(e).Exec(ctx)
	return err
}

func (q *Queries) UpdateBlocklistEntry(ctx context.Context, e *models.BlocklistEntry) error {
	_, err := q.db.NewUpdate().
		Model(e).
		Column("total_no_shows", "updated_at").
		Where("id = ?", e.ID).
		Exec(ctx)
	return err
}

var (
	_ attendance.Store   = (*DB)(nil)
	_ attendance.TxStore = (*Queries)(nil)
)

// Package analytics builds the read-only dashboard and the spreadsheet
// exports from the attendance tables.
package analytics

import (
	"context"
	"math"
	"time"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
)

type Service struct {
	db *DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: NewDB(db)}
}

type Summary struct {
	TotalParticipants int     `json:"totalParticipants"`
	TotalAttended     int     `json:"totalAttended"`
	TotalNoShows      int     `json:"totalNoShows"`
	TotalBlocklisted  int     `json:"totalBlocklisted"`
	NoShowPercentage  float64 `json:"noShowPercentage"`
	TotalEvents       int     `json:"totalEvents"`
}

type EventRef struct {
	Name      string     `json:"name"`
	EventDate *time.Time `json:"eventDate,omitempty"`
}

type NoShowRecord struct {
	ID          string              `json:"id"`
	RecordedAt  time.Time           `json:"recordedAt"`
	Participant *models.Participant `json:"participant"`
	Event       EventRef            `json:"event"`
}

type BlocklistRecord struct {
	ID               string              `json:"id"`
	TotalNoShows     int                 `json:"totalNoShows"`
	FirstNoShowAt    *time.Time          `json:"firstNoShowAt"`
	Participant      *models.Participant `json:"participant"`
	FirstNoShowEvent *EventRef           `json:"firstNoShowEvent"`
}

type Overview struct {
	Summary       Summary           `json:"summary"`
	EventHistory  []EventAggregate  `json:"eventHistory"`
	NoShowHistory []NoShowRecord    `json:"noShowHistory"`
	Blocklist     []BlocklistRecord `json:"blocklist"`
}

// NoShowPercentage is the share of no-shows among participants with a
// recorded outcome, rounded to two decimals. Zero when nobody has one.
func NoShowPercentage(attended, noShows int) float64 {
	total := attended + noShows
	if total == 0 {
		return 0
	}
	return math.Round(float64(noShows)/float64(total)*100*100) / 100
}

// Overview assembles the dashboard: global counts, per-event aggregates,
// the no-show history and the blocklist.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.db.GetCounts(ctx)
	if err != nil {
		return nil, domain.Store("count dashboard totals", err)
	}

	events, err := s.db.GetEventAggregates(ctx)
	if err != nil {
		return nil, domain.Store("aggregate events", err)
	}

	history, err := s.db.GetNoShowHistory(ctx)
	if err != nil {
		return nil, domain.Store("load no-show history", err)
	}

	entries, err := s.db.GetBlocklist(ctx)
	if err != nil {
		return nil, domain.Store("load blocklist", err)
	}

	out := &Overview{
		Summary: Summary{
			TotalParticipants: counts.Participants,
			TotalAttended:     counts.Attended,
			TotalNoShows:      counts.NoShows,
			TotalBlocklisted:  counts.Blocklisted,
			NoShowPercentage:  NoShowPercentage(counts.Attended, counts.NoShows),
			TotalEvents:       counts.Events,
		},
		EventHistory:  events,
		NoShowHistory: make([]NoShowRecord, 0, len(history)),
		Blocklist:     make([]BlocklistRecord, 0, len(entries)),
	}
	if out.EventHistory == nil {
		out.EventHistory = []EventAggregate{}
	}

	for _, h := range history {
		rec := NoShowRecord{ID: h.ID, RecordedAt: h.RecordedAt, Participant: h.Participant}
		if h.Event != nil {
			date := h.Event.EventDate
			rec.Event = EventRef{Name: h.Event.Name, EventDate: &date}
		}
		out.NoShowHistory = append(out.NoShowHistory, rec)
	}

	for _, e := range entries {
		rec := BlocklistRecord{ID: e.ID, TotalNoShows: e.TotalNoShows, Participant: e.Participant}
		if !e.FirstNoShowAt.IsZero() {
			at := e.FirstNoShowAt
			rec.FirstNoShowAt = &at
		}
		if ev := firstNoShowEvent(e); ev != nil {
			rec.FirstNoShowEvent = &EventRef{Name: ev.Name}
		}
		out.Blocklist = append(out.Blocklist, rec)
	}

	return out, nil
}

// firstNoShowEvent returns nil for entries whose anchor event is unset; the
// left join still hands back an empty struct for those.
func firstNoShowEvent(e models.BlocklistEntry) *models.Event {
	if e.FirstNoShowEvent == nil || e.FirstNoShowEvent.ID == "" {
		return nil
	}
	return e.FirstNoShowEvent
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BlocklistEntry struct {
	bun.BaseModel `bun:"table:blocklist_entries,alias:b"`

	ID                 string    `bun:"id,pk" json:"id"`
	ParticipantID      string    `bun:"participant_id,unique,notnull" json:"participantId"`
	FirstNoShowEventID string    `bun:"first_no_show_event_id,nullzero" json:"firstNoShowEventId,omitempty"`
	FirstNoShowAt      time.Time `bun:"first_no_show_at,nullzero" json:"firstNoShowAt"`
	TotalNoShows       int       `bun:"total_no_shows,notnull" json:"totalNoShows"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt          time.Time `bun:"updated_at,notnull" json:"updatedAt"`

	Participant      *Participant `bun:"rel:belongs-to,join:participant_id=id" json:"participant,omitempty"`
	FirstNoShowEvent *Event       `bun:"rel:belongs-to,join:first_no_show_event_id=id" json:"firstNoShowEvent,omitempty"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// NoShowHistory records that a participant missed an event. Rows are never
// updated or deleted.
type NoShowHistory struct {
	bun.BaseModel `bun:"table:no_show_history,alias:h"`

	ID            string    `bun:"id,pk" json:"id"`
	ParticipantID string    `bun:"participant_id,notnull" json:"participantId"`
	EventID       string    `bun:"event_id,notnull" json:"eventId"`
	RecordedAt    time.Time `bun:"recorded_at,notnull" json:"recordedAt"`

	Participant *Participant `bun:"rel:belongs-to,join:participant_id=id" json:"participant,omitempty"`
	Event       *Event       `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AttendanceStatus string

const (
	StatusConfirmed AttendanceStatus = "CONFIRMED"
	StatusAttended  AttendanceStatus = "ATTENDED"
	StatusNoShow    AttendanceStatus = "NO_SHOW"
)

// EventParticipant links one participant to one event. The latest upload
// for the pair overwrites its status and flags.
type EventParticipant struct {
	bun.BaseModel `bun:"table:event_participants,alias:ep"`

	ID               string           `bun:"id,pk" json:"id"`
	EventID          string           `bun:"event_id,notnull,unique:event_participant" json:"eventId"`
	ParticipantID    string           `bun:"participant_id,notnull,unique:event_participant" json:"participantId"`
	Status           AttendanceStatus `bun:"status,notnull" json:"status"`
	FlaggedNoShow    bool             `bun:"flagged_no_show,notnull" json:"flaggedNoShow"`
	FlaggedBlocklist bool             `bun:"flagged_blocklist,notnull" json:"flaggedBlocklist"`
	CreatedAt        time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt        time.Time        `bun:"updated_at,notnull" json:"updatedAt"`

	Participant *Participant `bun:"rel:belongs-to,join:participant_id=id" json:"participant,omitempty"`
	Event       *Event       `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Participant is a person known by email across every imported event.
type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID        string    `bun:"id,pk" json:"id"`
	FullName  string    `bun:"full_name,notnull" json:"fullName"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	Company   string    `bun:"company,nullzero" json:"company,omitempty"`
	City      string    `bun:"city,nullzero" json:"city,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// ParticipantState is a participant together with the history facts the
// workflows classify on, loaded in one batched query.
type ParticipantState struct {
	Participant
	NoShowCount int
	Blocklisted bool
}

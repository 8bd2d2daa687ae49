package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Volunteer struct {
	bun.BaseModel `bun:"table:volunteers,alias:v"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	PhoneNumber string    `bun:"phone_number,nullzero" json:"phoneNumber,omitempty"`
	Email       string    `bun:"email,nullzero" json:"email,omitempty"`
	JoinedAt    time.Time `bun:"joined_at,notnull" json:"joinedAt"`
	Comments    string    `bun:"comments,nullzero" json:"comments,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

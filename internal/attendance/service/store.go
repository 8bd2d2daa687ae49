package attendance

import (
	"context"
	"time"

	"ms-attendance/internal/models"
)

// Store opens the transactions both write workflows run in. Every read and
// write of one workflow goes through the TxStore handed to fn; returning an
// error from fn rolls the whole transaction back.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}

// TxStore is the persistence surface available inside a transaction.
// Lookups that find nothing return (nil, nil) except GetEvent, which returns
// a not-found error.
type TxStore interface {
	FindParticipantStates(ctx context.Context, emails []string) ([]models.ParticipantState, error)
	CreateParticipant(ctx context.Context, p *models.Participant) error
	UpdateParticipant(ctx context.Context, p *models.Participant) error

	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)

	CreateEventParticipants(ctx context.Context, links []models.EventParticipant) error
	GetEventParticipant(ctx context.Context, eventID, participantID string) (*models.EventParticipant, error)
	CreateEventParticipant(ctx context.Context, link *models.EventParticipant) error
	UpdateEventParticipant(ctx context.Context, link *models.EventParticipant) error

	HasNoShow(ctx context.Context, participantID, eventID string) (bool, error)
	CreateNoShow(ctx context.Context, h *models.NoShowHistory) error
	CountNoShows(ctx context.Context, participantID string) (int, error)
	// FirstNoShow returns the earliest history row by recorded_at with its Event loaded.
	FirstNoShow(ctx context.Context, participantID string) (*models.NoShowHistory, error)

	GetBlocklistEntry(ctx context.Context, participantID string) (*models.BlocklistEntry, error)
	CreateBlocklistEntry(ctx context.Context, e *models.BlocklistEntry) error
	UpdateBlocklistEntry(ctx context.Context, e *models.BlocklistEntry) error
}

// EventLocker serialises attendance uploads for one event across instances.
type EventLocker interface {
	Lock(ctx context.Context, eventID, owner string) (bool, error)
	Unlock(ctx context.Context, eventID, owner string) error
}

// EventPublisher receives domain events after a workflow commits.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// Clock is swapped in tests to pin timestamps.
type Clock func() time.Time

package attendance

import (
	"context"
	"time"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"
	"ms-attendance/internal/spreadsheet"
)

// ReconciledParticipant is the persisted participant for one incoming row,
// with the history facts read before this run touched anything.
type ReconciledParticipant struct {
	Participant models.Participant
	NoShowCount int
	Blocklisted bool
	Created     bool
}

// Reconcile finds or creates a participant for every row using a single
// batched lookup. Existing participants keep their stored name, company and
// city wherever the incoming value is empty. The result is keyed by email.
func (s *Service) Reconcile(ctx context.Context, tx TxStore, rows []spreadsheet.ParticipantRow) (map[string]ReconciledParticipant, error) {
	emails := make([]string, len(rows))
	for i, row := range rows {
		emails[i] = row.Email
	}

	states, err := tx.FindParticipantStates(ctx, emails)
	if err != nil {
		return nil, domain.Store("find participants", err)
	}
	existing := make(map[string]models.ParticipantState, len(states))
	for _, st := range states {
		existing[st.Email] = st
	}

	now := s.now()
	out := make(map[string]ReconciledParticipant, len(rows))
	for _, row := range rows {
		if _, done := out[row.Email]; done {
			continue
		}

		if st, ok := existing[row.Email]; ok {
			p := st.Participant
			p.FullName = preferIncoming(row.FullName, p.FullName)
			p.Company = preferIncoming(row.Company, p.Company)
			p.City = preferIncoming(row.City, p.City)
			p.UpdatedAt = now
			if err := tx.UpdateParticipant(ctx, &p); err != nil {
				return nil, domain.Store("update participant", err)
			}
			out[row.Email] = ReconciledParticipant{Participant: p, NoShowCount: st.NoShowCount, Blocklisted: st.Blocklisted}
			continue
		}

		p := newParticipant(s.newID(), row, now)
		if err := tx.CreateParticipant(ctx, &p); err != nil {
			return nil, domain.Store("create participant", err)
		}
		out[row.Email] = ReconciledParticipant{Participant: p, Created: true}
	}
	return out, nil
}

func newParticipant(id string, row spreadsheet.ParticipantRow, now time.Time) models.Participant {
	return models.Participant{
		ID:        id,
		FullName:  row.FullName,
		Email:     row.Email,
		Company:   row.Company,
		City:      row.City,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func preferIncoming(incoming, current string) string {
	if incoming != "" {
		return incoming
	}
	return current
}

package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"
	"ms-attendance/internal/spreadsheet"
)

// BlocklistThreshold is the cumulative no-show count that promotes a
// participant onto the blocklist.
const BlocklistThreshold = 2

// AttendanceKind names an uploaded list. Lists are applied in declaration
// order so later kinds override earlier ones for the same participant.
type AttendanceKind int

const (
	KindAttended AttendanceKind = iota
	KindNoShow
	KindBlocklisted
)

var attendanceKinds = []AttendanceKind{KindAttended, KindNoShow, KindBlocklisted}

func (k AttendanceKind) String() string {
	switch k {
	case KindAttended:
		return "attended"
	case KindNoShow:
		return "no_show"
	case KindBlocklisted:
		return "blocklisted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type AttendanceList struct {
	Kind AttendanceKind
	Rows []spreadsheet.ParticipantRow
}

type AttendanceRequest struct {
	EventID string
	Lists   []AttendanceList
}

type AttendanceSummary struct {
	TotalAttendedMarked int      `json:"totalAttendedMarked"`
	TotalNoShowsMarked  int      `json:"totalNoShowsMarked"`
	TotalBlocklisted    int      `json:"totalBlocklisted"`
	MissingParticipants []string `json:"missingParticipants"`
}

// BlocklistChange is published for every entry created or bumped by an upload.
type BlocklistChange struct {
	ParticipantID string `json:"participantId"`
	EventID       string `json:"eventId"`
	TotalNoShows  int    `json:"totalNoShows"`
	Source        string `json:"source"`
	Created       bool   `json:"created"`
}

// orderLists merges lists of the same kind, dedupes each by email and
// returns them attended first, then no-show, then blocklisted.
func orderLists(lists []AttendanceList) ([]AttendanceList, int) {
	byKind := make(map[AttendanceKind][]spreadsheet.ParticipantRow, len(attendanceKinds))
	for _, l := range lists {
		byKind[l.Kind] = append(byKind[l.Kind], l.Rows...)
	}

	ordered := make([]AttendanceList, 0, len(byKind))
	total := 0
	for _, kind := range attendanceKinds {
		rows, ok := byKind[kind]
		if !ok {
			continue
		}
		rows = spreadsheet.Dedupe(rows)
		total += len(rows)
		ordered = append(ordered, AttendanceList{Kind: kind, Rows: rows})
	}
	return ordered, total
}

// CheckEvent reports a not-found error when eventID names no event.
func (s *Service) CheckEvent(ctx context.Context, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.Validation("Validation failed: eventId: Event id is required")
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx TxStore) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return domain.Store("load event", err)
		}
		return nil
	})
}

// RecordAttendance applies up to three uploaded lists to an existing event in
// one transaction. Emails that match no participant are reported in
// MissingParticipants and skipped.
func (s *Service) RecordAttendance(ctx context.Context, req AttendanceRequest) (*AttendanceSummary, error) {
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return nil, domain.Validation("Validation failed: eventId: Event id is required")
	}
	if len(req.Lists) == 0 {
		return nil, domain.Input("Please upload at least one attendance file")
	}
	for _, l := range req.Lists {
		if l.Kind < KindAttended || l.Kind > KindBlocklisted {
			return nil, domain.Validation("unknown attendance list %s", l.Kind)
		}
	}
	lists, totalRows := orderLists(req.Lists)

	if s.locker != nil {
		owner := s.newID()
		locked, err := s.locker.Lock(ctx, eventID, owner)
		if err != nil {
			return nil, fmt.Errorf("acquire attendance lock: %w", err)
		}
		if !locked {
			return nil, domain.Conflict("Attendance for event %s is already being recorded", eventID)
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), eventID, owner); err != nil {
				s.logger.Warn("ATTENDANCE", fmt.Sprintf("Failed to release lock for event %s: %v", eventID, err))
			}
		}()
	}

	var run *attendanceRun
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx TxStore) error {
		event, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return domain.Store("load event", err)
		}
		if totalRows == 0 {
			return domain.Input("Uploaded files do not contain any participants")
		}

		var emails []string
		seen := make(map[string]struct{})
		for _, l := range lists {
			for _, row := range l.Rows {
				if _, dup := seen[row.Email]; !dup {
					seen[row.Email] = struct{}{}
					emails = append(emails, row.Email)
				}
			}
		}
		states, err := tx.FindParticipantStates(ctx, emails)
		if err != nil {
			return domain.Store("find participants", err)
		}
		known := make(map[string]models.Participant, len(states))
		for _, st := range states {
			known[st.Email] = st.Participant
		}

		r := &attendanceRun{
			svc:     s,
			tx:      tx,
			event:   event,
			now:     s.now(),
			summary: AttendanceSummary{MissingParticipants: []string{}},
		}
		for _, l := range lists {
			apply := r.handler(l.Kind)
			for _, row := range l.Rows {
				p, ok := known[row.Email]
				if !ok {
					r.summary.MissingParticipants = append(r.summary.MissingParticipants, row.Email)
					continue
				}
				link, err := r.ensureLink(ctx, p.ID)
				if err != nil {
					return err
				}
				if err := apply(ctx, link); err != nil {
					return err
				}
			}
		}
		run = r
		return nil
	})
	if err != nil {
		s.logger.Error("ATTENDANCE", fmt.Sprintf("Attendance upload for event %s failed: %v", eventID, err))
		return nil, err
	}

	sum := run.summary
	s.logger.LogAttendance(eventID, fmt.Sprintf("Recorded %d attended, %d no-shows, %d blocklisted, %d promoted, %d missing",
		sum.TotalAttendedMarked, sum.TotalNoShowsMarked, sum.TotalBlocklisted, run.promotions, len(sum.MissingParticipants)))
	s.metrics.UploadCommitted(map[string]int{
		KindAttended.String():    sum.TotalAttendedMarked,
		KindNoShow.String():      sum.TotalNoShowsMarked,
		KindBlocklisted.String(): sum.TotalBlocklisted,
	}, run.promotions, len(sum.MissingParticipants))
	s.publish(ctx, AttendanceRecorded, eventID, sum)
	for _, change := range run.changes {
		s.publish(ctx, ParticipantBlocklisted, change.ParticipantID, change)
	}

	return &sum, nil
}

// attendanceRun holds the state of one upload inside its transaction.
type attendanceRun struct {
	svc     *Service
	tx      TxStore
	event   *models.Event
	now     time.Time
	summary AttendanceSummary

	promotions int
	changes    []BlocklistChange
}

type linkHandler func(ctx context.Context, link *models.EventParticipant) error

func (r *attendanceRun) handler(kind AttendanceKind) linkHandler {
	switch kind {
	case KindNoShow:
		return r.markNoShow
	case KindBlocklisted:
		return r.markBlocklisted
	default:
		return r.markAttended
	}
}

// ensureLink returns the (event, participant) association, creating it as
// CONFIRMED when the participant was never imported for this event.
func (r *attendanceRun) ensureLink(ctx context.Context, participantID string) (*models.EventParticipant, error) {
	link, err := r.tx.GetEventParticipant(ctx, r.event.ID, participantID)
	if err != nil {
		return nil, domain.Store("load event participant", err)
	}
	if link != nil {
		return link, nil
	}

	link = &models.EventParticipant{
		ID:            r.svc.newID(),
		EventID:       r.event.ID,
		ParticipantID: participantID,
		Status:        models.StatusConfirmed,
		CreatedAt:     r.now,
		UpdatedAt:     r.now,
	}
	if err := r.tx.CreateEventParticipant(ctx, link); err != nil {
		return nil, domain.Store("create event participant", err)
	}
	return link, nil
}

func (r *attendanceRun) saveLink(ctx context.Context, link *models.EventParticipant) error {
	link.UpdatedAt = r.now
	if err := r.tx.UpdateEventParticipant(ctx, link); err != nil {
		return domain.Store("update event participant", err)
	}
	return nil
}

func (r *attendanceRun) markAttended(ctx context.Context, link *models.EventParticipant) error {
	link.Status = models.StatusAttended
	link.FlaggedNoShow = false
	link.FlaggedBlocklist = false
	if err := r.saveLink(ctx, link); err != nil {
		return err
	}
	r.summary.TotalAttendedMarked++
	return nil
}

// markNoShow records at most one history row per (participant, event), then
// promotes to the blocklist once the true history count reaches the threshold.
// An existing entry is resynchronised to that count.
func (r *attendanceRun) markNoShow(ctx context.Context, link *models.EventParticipant) error {
	link.Status = models.StatusNoShow
	link.FlaggedNoShow = true
	link.FlaggedBlocklist = false

	pid := link.ParticipantID
	recorded, err := r.tx.HasNoShow(ctx, pid, r.event.ID)
	if err != nil {
		return domain.Store("check no-show history", err)
	}
	if !recorded {
		h := &models.NoShowHistory{ID: r.svc.newID(), ParticipantID: pid, EventID: r.event.ID, RecordedAt: r.now}
		if err := r.tx.CreateNoShow(ctx, h); err != nil {
			return domain.Store("record no-show", err)
		}
	}

	total, err := r.tx.CountNoShows(ctx, pid)
	if err != nil {
		return domain.Store("count no-shows", err)
	}

	if total >= BlocklistThreshold {
		entry, err := r.tx.GetBlocklistEntry(ctx, pid)
		if err != nil {
			return domain.Store("load blocklist entry", err)
		}
		created := entry == nil
		if created {
			entry, err = r.newThresholdEntry(ctx, pid, total)
			if err != nil {
				return err
			}
			if err := r.tx.CreateBlocklistEntry(ctx, entry); err != nil {
				return domain.Store("create blocklist entry", err)
			}
			r.promotions++
		} else {
			entry.TotalNoShows = total
			entry.UpdatedAt = r.now
			if err := r.tx.UpdateBlocklistEntry(ctx, entry); err != nil {
				return domain.Store("update blocklist entry", err)
			}
		}
		link.FlaggedBlocklist = true
		r.changes = append(r.changes, BlocklistChange{ParticipantID: pid, EventID: r.event.ID, TotalNoShows: total, Source: "threshold", Created: created})
	}

	if err := r.saveLink(ctx, link); err != nil {
		return err
	}
	r.summary.TotalNoShowsMarked++
	return nil
}

// newThresholdEntry anchors the entry at the participant's earliest recorded
// no-show, falling back to the current event.
func (r *attendanceRun) newThresholdEntry(ctx context.Context, participantID string, total int) (*models.BlocklistEntry, error) {
	first, err := r.tx.FirstNoShow(ctx, participantID)
	if err != nil {
		return nil, domain.Store("find first no-show", err)
	}

	eventID, at := r.event.ID, r.event.EventDate
	if first != nil {
		eventID = first.EventID
		if first.Event != nil {
			at = first.Event.EventDate
		}
	}

	return &models.BlocklistEntry{
		ID:                 r.svc.newID(),
		ParticipantID:      participantID,
		FirstNoShowEventID: eventID,
		FirstNoShowAt:      at,
		TotalNoShows:       total,
		CreatedAt:          r.now,
		UpdatedAt:          r.now,
	}, nil
}

// markBlocklisted is the manual path. It flags the link without touching its
// status and bumps an existing entry by one instead of recounting history.
func (r *attendanceRun) markBlocklisted(ctx context.Context, link *models.EventParticipant) error {
	link.FlaggedBlocklist = true
	if err := r.saveLink(ctx, link); err != nil {
		return err
	}

	pid := link.ParticipantID
	entry, err := r.tx.GetBlocklistEntry(ctx, pid)
	if err != nil {
		return domain.Store("load blocklist entry", err)
	}
	created := entry == nil
	if created {
		entry = &models.BlocklistEntry{
			ID:                 r.svc.newID(),
			ParticipantID:      pid,
			FirstNoShowEventID: r.event.ID,
			FirstNoShowAt:      r.event.EventDate,
			TotalNoShows:       1,
			CreatedAt:          r.now,
			UpdatedAt:          r.now,
		}
		if err := r.tx.CreateBlocklistEntry(ctx, entry); err != nil {
			return domain.Store("create blocklist entry", err)
		}
	} else {
		entry.TotalNoShows++
		entry.UpdatedAt = r.now
		if err := r.tx.UpdateBlocklistEntry(ctx, entry); err != nil {
			return domain.Store("update blocklist entry", err)
		}
	}

	r.changes = append(r.changes, BlocklistChange{ParticipantID: pid, EventID: r.event.ID, TotalNoShows: entry.TotalNoShows, Source: "manual", Created: created})
	r.summary.TotalBlocklisted++
	return nil
}

package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"
	"ms-attendance/internal/spreadsheet"
)

const minEventNameLen = 3

var eventDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

type ImportRequest struct {
	EventName string
	EventDate string
	Rows      []spreadsheet.ParticipantRow
}

type ImportSummary struct {
	TotalImported       int `json:"totalImported"`
	NewParticipants     int `json:"newParticipants"`
	UpdatedParticipants int `json:"updatedParticipants"`
	FlaggedNoShows      int `json:"flaggedNoShows"`
	FlaggedBlocklisted  int `json:"flaggedBlocklisted"`
	NormalParticipants  int `json:"normalParticipants"`
}

type FlaggedParticipant struct {
	spreadsheet.ParticipantRow
	WasNoShow     bool `json:"wasNoShow"`
	IsBlocklisted bool `json:"isBlocklisted"`
}

type ImportResult struct {
	Event                   *models.Event                `json:"event"`
	Summary                 ImportSummary                `json:"summary"`
	FlaggedParticipants     []FlaggedParticipant         `json:"flaggedParticipants"`
	NormalParticipants      []spreadsheet.ParticipantRow `json:"normalParticipants"`
	NoShowParticipants      []spreadsheet.ParticipantRow `json:"noShowParticipants"`
	BlocklistedParticipants []spreadsheet.ParticipantRow `json:"blocklistedParticipants"`
}

// ParseEventDate accepts RFC 3339 timestamps, datetime-local form values and
// plain dates.
func ParseEventDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// ValidateImport checks the event name and date of an import form so callers
// can reject them before reading the upload.
func ValidateImport(eventName, eventDate string) error {
	_, _, err := validateImport(ImportRequest{EventName: eventName, EventDate: eventDate})
	return err
}

func validateImport(req ImportRequest) (string, time.Time, error) {
	name := strings.TrimSpace(req.EventName)
	var problems []string
	if utf8.RuneCountInString(name) < minEventNameLen {
		problems = append(problems, fmt.Sprintf("eventName: Event name must be at least %d characters", minEventNameLen))
	}

	var date time.Time
	if strings.TrimSpace(req.EventDate) == "" {
		problems = append(problems, "eventDate: Event date is required")
	} else if parsed, err := ParseEventDate(req.EventDate); err != nil {
		problems = append(problems, "eventDate: Event date is invalid")
	} else {
		date = parsed
	}

	if len(problems) > 0 {
		return "", time.Time{}, domain.Validation("Validation failed: %s", strings.Join(problems, ", "))
	}
	return name, date, nil
}

// ImportEvent creates an event, reconciles its confirmed list and links every
// participant with flags taken from their prior history. Nothing is persisted
// unless every step succeeds.
func (s *Service) ImportEvent(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	name, date, err := validateImport(req)
	if err != nil {
		return nil, err
	}

	rows := spreadsheet.Dedupe(req.Rows)
	if len(rows) == 0 {
		return nil, domain.Input("No valid participants were found in the uploaded file")
	}

	var result *ImportResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx TxStore) error {
		now := s.now()
		event := &models.Event{
			ID:        s.newID(),
			Name:      name,
			EventDate: date,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateEvent(ctx, event); err != nil {
			return domain.Store("create event", err)
		}

		reconciled, err := s.Reconcile(ctx, tx, rows)
		if err != nil {
			return err
		}

		res := &ImportResult{
			Event:                   event,
			Summary:                 ImportSummary{TotalImported: len(rows)},
			FlaggedParticipants:     []FlaggedParticipant{},
			NormalParticipants:      []spreadsheet.ParticipantRow{},
			NoShowParticipants:      []spreadsheet.ParticipantRow{},
			BlocklistedParticipants: []spreadsheet.ParticipantRow{},
		}
		links := make([]models.EventParticipant, 0, len(rows))

		for _, row := range rows {
			rp := reconciled[row.Email]
			if rp.Created {
				res.Summary.NewParticipants++
			} else {
				res.Summary.UpdatedParticipants++
			}

			res.add(row, rp)
			links = append(links, models.EventParticipant{
				ID:               s.newID(),
				EventID:          event.ID,
				ParticipantID:    rp.Participant.ID,
				Status:           models.StatusConfirmed,
				FlaggedNoShow:    rp.NoShowCount > 0,
				FlaggedBlocklist: rp.Blocklisted,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}

		if err := tx.CreateEventParticipants(ctx, links); err != nil {
			return domain.Store("link participants", err)
		}
		result = res
		return nil
	})
	if err != nil {
		s.logger.Error("IMPORT", fmt.Sprintf("Import of %q failed: %v", name, err))
		return nil, err
	}

	sum := result.Summary
	s.logger.LogImport(result.Event.ID, fmt.Sprintf("Imported %q: %d rows, %d new, %d updated, %d previous no-shows, %d blocklisted",
		name, sum.TotalImported, sum.NewParticipants, sum.UpdatedParticipants, sum.FlaggedNoShows, sum.FlaggedBlocklisted))
	s.metrics.ImportCommitted(map[string]int{
		Normal.String():         sum.NormalParticipants,
		PreviousNoShow.String(): sum.FlaggedNoShows,
		Blocklisted.String():    sum.FlaggedBlocklisted,
	})
	s.publish(ctx, EventImported, result.Event.ID, result.Summary)

	return result, nil
}

func (r *ImportResult) add(row spreadsheet.ParticipantRow, rp ReconciledParticipant) {
	class := Classify(rp.NoShowCount, rp.Blocklisted)
	switch class {
	case Blocklisted:
		r.Summary.FlaggedBlocklisted++
		r.BlocklistedParticipants = append(r.BlocklistedParticipants, row)
	case PreviousNoShow:
		r.Summary.FlaggedNoShows++
		r.NoShowParticipants = append(r.NoShowParticipants, row)
	default:
		r.Summary.NormalParticipants++
		r.NormalParticipants = append(r.NormalParticipants, row)
		return
	}
	r.FlaggedParticipants = append(r.FlaggedParticipants, FlaggedParticipant{
		ParticipantRow: row,
		WasNoShow:      rp.NoShowCount > 0,
		IsBlocklisted:  rp.Blocklisted,
	})
}

var exportAllColumns = []string{"Full Name", "Email", "Company", "City", "Category", "Previous No-Show", "Blocklisted"}

// ExportAll lays out every imported row in one sheet: normal participants,
// then previous no-shows, then blocklisted.
func (r *ImportResult) ExportAll(now time.Time) (spreadsheet.Sheet, string) {
	sheet := spreadsheet.Sheet{Name: "all_participants", Columns: exportAllColumns}
	appendRows := func(rows []spreadsheet.ParticipantRow, category string, noShow, blocked bool) {
		for _, p := range rows {
			sheet.Rows = append(sheet.Rows, []any{p.FullName, p.Email, p.Company, p.City, category, yesNo(noShow), yesNo(blocked)})
		}
	}
	appendRows(r.NormalParticipants, "Normal", false, false)
	appendRows(r.NoShowParticipants, "Previous No-Show", true, false)
	for _, f := range r.FlaggedParticipants {
		if f.IsBlocklisted {
			sheet.Rows = append(sheet.Rows, []any{f.FullName, f.Email, f.Company, f.City, "Blocklisted", yesNo(f.WasNoShow), yesNo(true)})
		}
	}
	return sheet, fmt.Sprintf("all_participants_%s.xlsx", now.Format("2006-01-02"))
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

package analytics

import (
	"context"
	"strings"
	"time"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"
	"ms-attendance/internal/spreadsheet"
)

const dateLayout = "2006-01-02"

var (
	participantColumns = []string{"Full Name", "Email", "Company", "City"}
	blocklistColumns   = []string{"Full Name", "Email", "Company", "City", "Total Missed Events", "First No-Show Event", "First No-Show Date", "Blocked On"}
	noShowColumns      = []string{"Full Name", "Email", "Company", "City", "Event Name", "Event Date"}
	historyColumns     = []string{"Full Name", "Email", "Company", "City", "Event Name", "Event Date", "Recorded"}
)

// Export is a finished workbook layout plus its download name.
type Export struct {
	Filename string
	Sheets   []spreadsheet.Sheet
}

// BlocklistExport lists every blocklist entry, newest first.
func (s *Service) BlocklistExport(ctx context.Context) (*Export, error) {
	entries, err := s.db.GetBlocklist(ctx)
	if err != nil {
		return nil, domain.Store("load blocklist", err)
	}

	sheet := spreadsheet.Sheet{Name: "blocklist", Columns: blocklistColumns, Rows: make([][]any, 0, len(entries))}
	for _, e := range entries {
		firstEvent, firstDate := "", ""
		if ev := firstNoShowEvent(e); ev != nil {
			firstEvent = ev.Name
		}
		if !e.FirstNoShowAt.IsZero() {
			firstDate = e.FirstNoShowAt.UTC().Format(dateLayout)
		}
		sheet.Rows = append(sheet.Rows, append(participantCells(e.Participant),
			e.TotalNoShows, firstEvent, firstDate, e.CreatedAt.UTC().Format(time.RFC3339)))
	}

	return &Export{Filename: "global_blocklist.xlsx", Sheets: []spreadsheet.Sheet{sheet}}, nil
}

// ConfirmedExport lists the participants of one event who are still
// CONFIRMED and carry neither flag.
func (s *Service) ConfirmedExport(ctx context.Context, eventID string) (*Export, error) {
	event, err := s.db.GetEvent(ctx, eventID)
	if err != nil {
		return nil, domain.Store("load event", err)
	}

	links, err := s.db.GetEventParticipantsByStatus(ctx, event.ID, models.StatusConfirmed)
	if err != nil {
		return nil, domain.Store("load confirmed participants", err)
	}

	sheet := spreadsheet.Sheet{Name: event.Name + "-confirmed", Columns: participantColumns, Rows: [][]any{}}
	for _, link := range links {
		if link.FlaggedNoShow || link.FlaggedBlocklist {
			continue
		}
		sheet.Rows = append(sheet.Rows, participantCells(link.Participant))
	}

	return &Export{
		Filename: fileStem(event.Name) + "_filtered_confirmed.xlsx",
		Sheets:   []spreadsheet.Sheet{sheet},
	}, nil
}

// NoShowExport lists the no-shows of one event and, on a second sheet, every
// no-show those participants have across all events.
func (s *Service) NoShowExport(ctx context.Context, eventID string) (*Export, error) {
	event, err := s.db.GetEvent(ctx, eventID)
	if err != nil {
		return nil, domain.Store("load event", err)
	}

	links, err := s.db.GetEventParticipantsByStatus(ctx, event.ID, models.StatusNoShow)
	if err != nil {
		return nil, domain.Store("load no-show participants", err)
	}

	eventSheet := spreadsheet.Sheet{Name: event.Name + "-no-shows", Columns: noShowColumns, Rows: make([][]any, 0, len(links))}
	ids := make([]string, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ParticipantID)
		eventSheet.Rows = append(eventSheet.Rows, append(participantCells(link.Participant),
			event.Name, event.EventDate.UTC().Format(dateLayout)))
	}

	history, err := s.db.GetNoShowHistoryForParticipants(ctx, ids)
	if err != nil {
		return nil, domain.Store("load cross-event history", err)
	}

	historySheet := spreadsheet.Sheet{Name: "cross-event-history", Columns: historyColumns, Rows: make([][]any, 0, len(history))}
	for _, h := range history {
		name, date := "", ""
		if h.Event != nil {
			name, date = h.Event.Name, h.Event.EventDate.UTC().Format(dateLayout)
		}
		historySheet.Rows = append(historySheet.Rows, append(participantCells(h.Participant),
			name, date, h.RecordedAt.UTC().Format(time.RFC3339)))
	}

	return &Export{
		Filename: fileStem(event.Name) + "_no_show_report.xlsx",
		Sheets:   []spreadsheet.Sheet{eventSheet, historySheet},
	}, nil
}

func participantCells(p *models.Participant) []any {
	if p == nil {
		return []any{"", "", "", ""}
	}
	return []any{p.FullName, p.Email, p.Company, p.City}
}

// fileStem replaces every whitespace run in an event name with an underscore.
func fileStem(name string) string {
	return strings.Join(strings.Fields(name), "_")
}

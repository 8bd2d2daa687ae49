// Package spreadsheet converts participant workbooks to rows and export
// row-sets back to xlsx bytes.
package spreadsheet

import (
	"bytes"
	"strings"

	"ms-attendance/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	HeaderFullName = "full name"
	HeaderEmail    = "email"
	HeaderCompany  = "company"
	HeaderCity     = "city"
)

// RequiredHeaders are matched case-insensitively after trimming, in any order.
var RequiredHeaders = []string{HeaderFullName, HeaderEmail, HeaderCompany, HeaderCity}

// ParticipantRow is one canonical line of an uploaded participant sheet.
// Email is lowercased and never empty.
type ParticipantRow struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Company  string `json:"company,omitempty"`
	City     string `json:"city,omitempty"`
}

// ParseParticipants reads the first sheet of an xlsx workbook. A workbook
// without sheets or rows yields an empty slice. A header row lacking any
// required column fails with a schema error even when no data rows follow.
func ParseParticipants(data []byte) ([]ParticipantRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.Schema("unable to read workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []ParticipantRow{}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.Schema("unable to read sheet %q: %v", sheets[0], err)
	}

	headerAt := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return []ParticipantRow{}, nil
	}

	columns := make(map[string]int, len(rows[headerAt]))
	for i, cell := range rows[headerAt] {
		key := normalizeHeader(cell)
		if _, seen := columns[key]; !seen && key != "" {
			columns[key] = i
		}
	}

	var missing []string
	for _, h := range RequiredHeaders {
		if _, ok := columns[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Schema("missing required headers: %s. Expected: %s",
			strings.Join(missing, ", "), strings.Join(RequiredHeaders, ", "))
	}

	parsed := make([]ParticipantRow, 0, len(rows)-headerAt-1)
	for _, row := range rows[headerAt+1:] {
		parsed = append(parsed, ParticipantRow{
			FullName: cellAt(row, columns[HeaderFullName]),
			Email:    cellAt(row, columns[HeaderEmail]),
			Company:  cellAt(row, columns[HeaderCompany]),
			City:     cellAt(row, columns[HeaderCity]),
		})
	}

	return Dedupe(parsed), nil
}

// Dedupe canonicalises rows and keeps the first occurrence of every email.
// Rows whose email is empty after trimming are dropped.
func Dedupe(rows []ParticipantRow) []ParticipantRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]ParticipantRow, 0, len(rows))
	for _, row := range rows {
		row = row.canonical()
		if row.Email == "" {
			continue
		}
		if _, dup := seen[row.Email]; dup {
			continue
		}
		seen[row.Email] = struct{}{}
		out = append(out, row)
	}
	return out
}

func (r ParticipantRow) canonical() ParticipantRow {
	return ParticipantRow{
		FullName: strings.TrimSpace(r.FullName),
		Email:    strings.ToLower(strings.TrimSpace(r.Email)),
		Company:  strings.TrimSpace(r.Company),
		City:     strings.TrimSpace(r.City),
	}
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

package spreadsheet

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxSheetNameLen = 31
)

// Sheet is one named tab: a header row followed by data rows in column order.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// BuildWorkbook renders sheets in order into an xlsx workbook. Sheet names are
// made legal for Excel and unique within the workbook.
func BuildWorkbook(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	used := make(map[string]struct{}, len(sheets))

	for i, sheet := range sheets {
		name := uniqueSheetName(SanitizeSheetName(sheet.Name), used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("rename sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}

		header := make([]any, len(sheet.Columns))
		for c, col := range sheet.Columns {
			header[c] = col
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return nil, fmt.Errorf("write header of %q: %w", name, err)
		}

		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			values := row
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return nil, fmt.Errorf("write row %d of %q: %w", r+1, name, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SanitizeSheetName replaces characters Excel rejects and truncates to 31 characters.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		return "Sheet"
	}
	return truncate(name, maxSheetNameLen)
}

func uniqueSheetName(name string, used map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		key := strings.ToLower(candidate)
		if _, taken := used[key]; !taken {
			used[key] = struct{}{}
			return candidate
		}
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, maxSheetNameLen-len(suffix)) + suffix
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

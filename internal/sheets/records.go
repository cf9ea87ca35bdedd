package sheets

import (
	"fmt"
	"strings"

	"spendboard/internal/core"
)

// ToRecords turns a values matrix whose first row is the header into records
// keyed by header cell. Short rows are padded with empty strings and cells
// beyond the header are ignored. Blank header cells and headers repeated
// (ignoring case) are rejected.
func ToRecords(values [][]string) ([]core.RawRecord, error) {
	if len(values) == 0 {
		return []core.RawRecord{}, nil
	}
	header := make([]string, len(values[0]))
	seen := make(map[string]int, len(values[0]))
	for i, h := range values[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			// Trailing blank header cells are common in hand-edited sheets.
			if allBlank(values[0][i:]) {
				header = header[:i]
				break
			}
			return nil, fmt.Errorf("header cell %d is blank", i+1)
		}
		key := strings.ToLower(h)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("header %q repeated in columns %d and %d", h, prev+1, i+1)
		}
		seen[key] = i
		header[i] = h
	}

	out := make([]core.RawRecord, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(core.RawRecord, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

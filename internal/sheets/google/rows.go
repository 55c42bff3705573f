package google

import (
	"expensetracker/internal/core"
)

// Column order in the mirrored sheet.
var header = []string{"ID", "Date", "Category", "Name", "Method", "Status", "Amount"}

const lastColumn = "G"

// recordRows renders records as sheet rows. Absent fields are blank cells.
func recordRows(records []core.Record) [][]interface{} {
	rows := make([][]interface{}, 0, len(records)+1)

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	rows = append(rows, head)

	for _, r := range records {
		amount := ""
		if r.Amount != nil {
			amount = core.FormatAmount(*r.Amount)
		}
		rows = append(rows, []interface{}{
			r.ID,
			deref(r.Date),
			deref(r.Category),
			deref(r.Name),
			deref(r.Method),
			deref(r.Status),
			amount,
		})
	}
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV exports the summary's expenses as CSV with a trailing total row.
// Dates are written in loc.
func WriteCSV(w io.Writer, s Summary, loc *time.Location) error {
	cw := csv.NewWriter(w)

	records := [][]string{{"Date", "Reason", "Category", "Amount"}}
	for _, e := range s.Expenses {
		records = append(records, []string{
			e.Date.In(loc).Format("2006-01-02 15:04"),
			e.Reason,
			string(e.Category),
			strconv.FormatFloat(e.Amount, 'f', 2, 64),
		})
	}
	records = append(records, []string{}, []string{"", "", "Total", s.Total.StringFixed(2)})

	return cw.WriteAll(records)
}

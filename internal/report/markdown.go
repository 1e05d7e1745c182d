package report

import (
	"fmt"
	"strings"
)

// Markdown renders the summary as a Markdown document.
func Markdown(s Summary, currency string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Spending report (%s)\n\n", s.Range)

	if s.Count == 0 {
		b.WriteString("No expenses in this period.\n")
		return b.String()
	}

	b.WriteString("| Total spent | Average | Transactions |\n")
	b.WriteString("|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %s | %s | %d |\n\n",
		FormatMoney(s.Total, currency), FormatMoney(s.Average, currency), s.Count)

	b.WriteString("## By category\n\n")
	b.WriteString("| Category | Total |\n|---|---:|\n")
	for _, c := range s.ByCategory {
		fmt.Fprintf(&b, "| %s | %s |\n", c.Category, FormatMoney(c.Total, currency))
	}

	b.WriteString("\n## Trend\n\n")
	b.WriteString("| Period | Total |\n|---|---:|\n")
	for _, p := range s.Trend {
		fmt.Fprintf(&b, "| %s | %s |\n", p.Label, FormatMoney(p.Total, currency))
	}

	b.WriteString("\n## Monthly breakdown\n")
	for _, m := range s.Monthly {
		fmt.Fprintf(&b, "\n### %s\n\n", m.Month.Format("January 2006"))
		b.WriteString("| Category | Total |\n|---|---:|\n")
		for _, c := range m.Categories {
			fmt.Fprintf(&b, "| %s | %s |\n", c.Category, FormatMoney(c.Total, currency))
		}
	}

	return b.String()
}

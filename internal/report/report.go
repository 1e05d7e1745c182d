// Package report aggregates expenses over a time range: totals, spending by
// category, a spending trend and a per-month category breakdown.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spendtrack/internal/models"
)

// Range selects which expenses a report covers.
type Range string

const (
	Range30Day  Range = "30-day"
	Range6Month Range = "6-month"
	RangeAnnual Range = "annual"
	RangeAll    Range = "all"
)

// Ranges lists every range in display order.
var Ranges = []Range{Range30Day, Range6Month, RangeAnnual, RangeAll}

// ParseRange validates a range name.
func ParseRange(s string) (Range, error) {
	for _, r := range Ranges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown range %q", s)
}

// Start returns the first instant covered by r, in now's location.
// RangeAll returns the zero time.
func (r Range) Start(now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch r {
	case Range30Day:
		return time.Date(y, m, d-29, 0, 0, 0, 0, loc)
	case Range6Month:
		return time.Date(y, m-5, 1, 0, 0, 0, 0, loc)
	case RangeAnnual:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	}
	return time.Time{}
}

// Filter returns the expenses dated within r, up to and including now.
func Filter(expenses []models.Expense, r Range, now time.Time) []models.Expense {
	if r == RangeAll {
		return append([]models.Expense(nil), expenses...)
	}
	start := r.Start(now)
	var out []models.Expense
	for _, e := range expenses {
		if !e.Date.Before(start) && !e.Date.After(now) {
			out = append(out, e)
		}
	}
	return out
}

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
	Category models.Category
	Total    decimal.Decimal
}

// TrendPoint is the amount spent in one day or month.
type TrendPoint struct {
	Label string
	Start time.Time
	Total decimal.Decimal
}

// MonthBreakdown is the per-category spending of one calendar month.
type MonthBreakdown struct {
	Month      time.Time
	Categories []CategoryTotal
}

// Summary is the aggregate view of a set of expenses.
type Summary struct {
	Range   Range
	Total   decimal.Decimal
	Average decimal.Decimal
	Count   int

	// ByCategory is ordered by total, largest first.
	ByCategory []CategoryTotal

	// Trend is chronological: per day for Range30Day, per month otherwise.
	Trend []TrendPoint

	// Monthly is ordered newest month first.
	Monthly []MonthBreakdown

	// Expenses are the expenses the summary covers.
	Expenses []models.Expense
}

// Summarize builds the summary of expenses within r as of now. Grouping by
// day or month uses now's location.
func Summarize(expenses []models.Expense, r Range, now time.Time) Summary {
	filtered := Filter(expenses, r, now)
	loc := now.Location()

	s := Summary{
		Range:    r,
		Total:    decimal.Zero,
		Average:  decimal.Zero,
		Count:    len(filtered),
		Expenses: filtered,
	}

	byCategory := make(map[models.Category]decimal.Decimal)
	trend := make(map[time.Time]decimal.Decimal)
	monthly := make(map[time.Time]map[models.Category]decimal.Decimal)

	for _, e := range filtered {
		amount := decimal.NewFromFloat(e.Amount)
		s.Total = s.Total.Add(amount)
		byCategory[e.Category] = byCategory[e.Category].Add(amount)

		local := e.Date.In(loc)
		month := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		bucket := month
		if r == Range30Day {
			bucket = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		}
		trend[bucket] = trend[bucket].Add(amount)

		if monthly[month] == nil {
			monthly[month] = make(map[models.Category]decimal.Decimal)
		}
		monthly[month][e.Category] = monthly[month][e.Category].Add(amount)
	}

	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count)))
	}

	s.ByCategory = sortedTotals(byCategory)

	for start, total := range trend {
		label := start.Format("Jan")
		if r == Range30Day {
			label = start.Format("Jan 2")
		}
		s.Trend = append(s.Trend, TrendPoint{Label: label, Start: start, Total: total})
	}
	sort.Slice(s.Trend, func(i, j int) bool {
		return s.Trend[i].Start.Before(s.Trend[j].Start)
	})

	for month, totals := range monthly {
		s.Monthly = append(s.Monthly, MonthBreakdown{Month: month, Categories: sortedTotals(totals)})
	}
	sort.Slice(s.Monthly, func(i, j int) bool {
		return s.Monthly[i].Month.After(s.Monthly[j].Month)
	})

	return s
}

func sortedTotals(m map[models.Category]decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(m))
	for c, total := range m {
		out = append(out, CategoryTotal{Category: c, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Total.Cmp(out[j].Total); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

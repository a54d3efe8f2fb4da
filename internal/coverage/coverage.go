// Package coverage derives the end of the period a data link covers from the
// dataset's update frequency and the partial date a publisher entered.
//
// Quarters follow a fiscal year that starts in April: Q1 ends in June, Q2 in
// September, Q3 in December and Q4 in March of the following calendar year.
package coverage

import (
	"time"

	"github.com/hacknation/dataset-publisher/internal/models"
)

// Period holds the raw date fields of a link. Zero means not supplied.
type Period struct {
	Day     int
	Month   int
	Quarter int
	Year    int
}

// PeriodOf reads the raw date fields from a link
func PeriodOf(l models.Link) Period {
	return Period{
		Day:     deref(l.Day),
		Month:   deref(l.Month),
		Quarter: deref(l.Quarter),
		Year:    deref(l.Year),
	}
}

// EndDate returns the coverage end date, or nil for FrequencyNever.
// Inputs are expected to be validated already; it never fails.
func EndDate(freq models.Frequency, p Period) *time.Time {
	switch freq {
	case models.FrequencyNever:
		return nil
	case models.FrequencyDaily, models.FrequencyWeekly:
		return ptr(date(p.Year, time.Month(p.Month), p.Day))
	case models.FrequencyMonthly:
		return ptr(endOfMonth(p.Year, time.Month(p.Month)))
	case models.FrequencyQuarterly:
		return ptr(endOfQuarter(p.Year, p.Quarter))
	case models.FrequencyAnnually:
		return ptr(date(p.Year, time.December, 31))
	case models.FrequencyFinancialYear:
		return ptr(endOfQuarter(p.Year, 4))
	}
	return nil
}

func ptr(t time.Time) *time.Time {
	return &t
}

// quarterEnds maps a fiscal quarter to the month it ends in and the year offset
var quarterEnds = map[int]struct {
	month      time.Month
	yearOffset int
}{
	1: {time.June, 0},
	2: {time.September, 0},
	3: {time.December, 0},
	4: {time.March, 1},
}

func endOfQuarter(year, quarter int) time.Time {
	q, ok := quarterEnds[quarter]
	if !ok {
		q = quarterEnds[4]
	}
	return endOfMonth(year+q.yearOffset, q.month)
}

func endOfMonth(year int, month time.Month) time.Time {
	// day 0 of the next month normalises to the last day of this one
	return date(year, month+1, 0)
}

// DaysIn returns the number of days in the given month
func DaysIn(year int, month time.Month) int {
	return endOfMonth(year, month).Day()
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

package analytics

import (
	"time"

	"github.com/sentience/backend/internal/review"
)

// Minimum span, in days, before a coarser granularity is offered.
const (
	monthlyMinSpanDays   = 30
	quarterlyMinSpanDays = 90
	yearlyMinSpanDays    = 365
)

// Timescales lists the granularities worth offering for a date range.
// Daily and Weekly are always available; coarser scales need a span longer
// than one of their periods.
func Timescales(from, to time.Time) []review.Granularity {
	span := daysBetween(from, to)
	out := []review.Granularity{review.Daily, review.Weekly}
	if span > monthlyMinSpanDays {
		out = append(out, review.Monthly)
	}
	if span > quarterlyMinSpanDays {
		out = append(out, review.Quarterly)
	}
	if span > yearlyMinSpanDays {
		out = append(out, review.Yearly)
	}
	return out
}

// DefaultRange narrows [first, last] to the trailing lookbackDays when the
// full span is longer than that.
func DefaultRange(first, last time.Time, lookbackDays int) (time.Time, time.Time) {
	if lookbackDays > 0 && daysBetween(first, last) > lookbackDays {
		return last.AddDate(0, 0, -lookbackDays), last
	}
	return first, last
}

// DateSpan returns the earliest and latest publish dates, truncated to days.
// ok is false when no record has a publish time.
func DateSpan(records []review.Record) (first, last time.Time, ok bool) {
	for i := range records {
		t := records[i].PublishTime
		if t == nil {
			continue
		}
		day := truncateDay(*t)
		if !ok || day.Before(first) {
			first = day
		}
		if !ok || day.After(last) {
			last = day
		}
		ok = true
	}
	return first, last, ok
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	a, b := truncateDay(from), truncateDay(to)
	fa := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	fb := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(fb.Sub(fa).Hours() / 24)
}

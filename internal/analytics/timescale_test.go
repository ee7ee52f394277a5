package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentience/backend/internal/review"
)

func TestTimescales(t *testing.T) {
	from := date(2024, 1, 1)

	tests := []struct {
		name string
		to   time.Time
		want []review.Granularity
	}{
		{"same day", from, []review.Granularity{review.Daily, review.Weekly}},
		{"thirty days", from.AddDate(0, 0, 30), []review.Granularity{review.Daily, review.Weekly}},
		{"thirty one days", from.AddDate(0, 0, 31), []review.Granularity{review.Daily, review.Weekly, review.Monthly}},
		{"quarter plus", from.AddDate(0, 0, 91), []review.Granularity{review.Daily, review.Weekly, review.Monthly, review.Quarterly}},
		{"over a year", from.AddDate(0, 0, 366), review.Granularities},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Timescales(from, tt.to))
		})
	}
}

func TestDefaultRange(t *testing.T) {
	first := date(2022, 1, 1)
	last := date(2024, 6, 30)

	from, to := DefaultRange(first, last, 365)
	assert.Equal(t, date(2023, 7, 1), from)
	assert.Equal(t, last, to)

	from, to = DefaultRange(date(2024, 1, 1), last, 365)
	assert.Equal(t, date(2024, 1, 1), from)
	assert.Equal(t, last, to)

	from, _ = DefaultRange(first, last, 0)
	assert.Equal(t, first, from)
}

func TestDateSpan(t *testing.T) {
	_, _, ok := DateSpan(nil)
	assert.False(t, ok)

	records := []review.Record{
		rec(t, "1", "2024-03-05"),
		rec(t, "2", "2024-01-02"),
		rec(t, "3", "2023-01-01", withoutTime()),
		rec(t, "4", "2024-02-10"),
	}

	first, last, ok := DateSpan(records)
	assert.True(t, ok)
	assert.Equal(t, date(2024, 1, 2), first)
	assert.Equal(t, date(2024, 3, 5), last)
}

package ingestion

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sentience/backend/internal/review"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// parseTime tries each layout in turn. Zoned values are converted to UTC;
// naive ones are read as UTC wall clock.
func parseTime(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return review.Time(t.UTC()), true
		}
	}
	return nil, false
}

// parseRating accepts "4", "4.5" and "4,5". Non-finite values are treated
// as missing.
func parseRating(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}

type formatStats struct {
	duplicates     int
	missingIDs     int
	invalidDates   int
	invalidRatings int
}

// formatRows turns CSV rows into records. Exact duplicate rows and repeated
// review ids are dropped, keeping the first occurrence; unparseable dates
// and ratings become nil.
func formatRows(t *table) ([]review.Record, formatStats) {
	var stats formatStats
	records := make([]review.Record, 0, len(t.rows))
	seenRows := make(map[string]struct{}, len(t.rows))
	seenIDs := make(map[string]struct{}, len(t.rows))

	for _, row := range t.rows {
		rowKey := strings.Join(row, "\x1f")
		if _, dup := seenRows[rowKey]; dup {
			stats.duplicates++
			continue
		}
		seenRows[rowKey] = struct{}{}

		id, _ := t.value(row, review.ColumnReviewID)
		id = strings.TrimSpace(id)
		if id == "" {
			stats.missingIDs++
			continue
		}
		if _, dup := seenIDs[id]; dup {
			stats.duplicates++
			continue
		}
		seenIDs[id] = struct{}{}

		r := review.Record{ReviewID: id}

		raw, _ := t.value(row, review.ColumnPublishTime)
		var ok bool
		if r.PublishTime, ok = parseTime(raw); !ok {
			stats.invalidDates++
		}
		if raw, present := t.value(row, review.ColumnReplyPublishTime); present {
			r.ReplyPublishTime, _ = parseTime(raw)
		}

		raw, _ = t.value(row, review.ColumnRating)
		if r.Rating, ok = parseRating(raw); !ok {
			stats.invalidRatings++
		}

		if text, _ := t.value(row, review.ColumnReviewText); text != "" {
			r.ReviewText = review.String(text)
		}
		if place, present := t.value(row, review.ColumnPlaceName); present {
			r.PlaceName = strings.TrimSpace(place)
		}

		records = append(records, r)
	}

	return records, stats
}

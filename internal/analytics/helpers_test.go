package analytics

import (
	"testing"
	"time"

	"github.com/sentience/backend/internal/review"
)

type recordOpt func(*review.Record)

func withRating(v float64) recordOpt {
	return func(r *review.Record) { r.Rating = review.Float(v) }
}

func withText(s string) recordOpt {
	return func(r *review.Record) { r.ReviewText = review.String(s) }
}

func withSentiment(l review.Label, score float64) recordOpt {
	return func(r *review.Record) {
		r.SentimentLabel = review.LabelPtr(l)
		r.SentimentScore = review.Float(score)
	}
}

func withTokens(tokens ...string) recordOpt {
	return func(r *review.Record) { r.CleanTokens = tokens }
}

func withoutTime() recordOpt {
	return func(r *review.Record) { r.PublishTime = nil }
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02 15:04", s+" 12:00")
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func rec(t *testing.T, id, date string, opts ...recordOpt) review.Record {
	t.Helper()
	r := review.Record{ReviewID: id, PublishTime: review.Time(day(t, date))}
	for _, opt := range opts {
		opt(&r)
	}
	r.DeriveWeightedSentiment()
	return r
}

func ids(records []review.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ReviewID
	}
	return out
}

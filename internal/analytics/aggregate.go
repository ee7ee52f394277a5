package analytics

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/pkg/logger"
)

// Bucket is one calendar period of the sentiment time series. Cumulative
// fields run from the first bucket of the aggregated range through this one,
// and the derived ratios are computed from them. A ratio is nil when its
// denominator is zero.
type Bucket struct {
	PeriodStart time.Time `json:"period_start"`

	NReviews             int     `json:"n_reviews"`
	NAnalyzed            int     `json:"n_analyzed"`
	PositiveCount        int     `json:"positive_count"`
	NeutralCount         int     `json:"neutral_count"`
	NegativeCount        int     `json:"negative_count"`
	RatingSum            float64 `json:"rating_sum"`
	SentimentScoreSum    float64 `json:"sentiment_score_sum"`
	WeightedSentimentSum float64 `json:"weighted_sentiment_sum"`

	CumReviews           int     `json:"cum_reviews"`
	CumAnalyzed          int     `json:"cum_analyzed"`
	CumPositive          int     `json:"cum_positive"`
	CumNeutral           int     `json:"cum_neutral"`
	CumNegative          int     `json:"cum_negative"`
	CumRating            float64 `json:"cum_rating"`
	CumSentimentScore    float64 `json:"cum_sentiment_score"`
	CumWeightedSentiment float64 `json:"cum_weighted_sentiment"`

	AvgRating      *float64 `json:"avg_rating"`
	PositiveRatio  *float64 `json:"positive_ratio"`
	NeutralRatio   *float64 `json:"neutral_ratio"`
	NegativeRatio  *float64 `json:"negative_ratio"`
	SentimentIndex *float64 `json:"sentiment_index"`
}

type periodSums struct {
	reviews, analyzed                int
	positive, neutral, negative      int
	rating, score, weightedSentiment float64
}

func (p *periodSums) add(r *review.Record) {
	p.reviews++
	if r.HasText() {
		p.analyzed++
	}
	if r.SentimentLabel != nil {
		switch *r.SentimentLabel {
		case review.Positive:
			p.positive++
		case review.Neutral:
			p.neutral++
		case review.Negative:
			p.negative++
		}
	}
	if r.Rating != nil {
		p.rating += *r.Rating
	}
	if r.SentimentScore != nil {
		p.score += *r.SentimentScore
	}
	if r.WeightedSentiment != nil {
		p.weightedSentiment += *r.WeightedSentiment
	}
}

// Aggregate buckets records by calendar period and computes cumulative
// sentiment metrics for every period between the earliest and latest
// publish time, including empty ones. Records without a publish time cannot
// be placed and are skipped. The input slice is not modified.
func Aggregate(records []review.Record, g review.Granularity) ([]Bucket, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", review.ErrInvalidGranularity, int(g))
	}

	bins := make(map[int64]*periodSums)
	var first, last time.Time
	seen := false
	skipped := 0

	for i := range records {
		r := &records[i]
		if r.PublishTime == nil {
			skipped++
			continue
		}

		start, err := g.PeriodStart(*r.PublishTime)
		if err != nil {
			return nil, err
		}

		key := start.Unix()
		sums, ok := bins[key]
		if !ok {
			sums = &periodSums{}
			bins[key] = sums
			if !seen || start.Before(first) {
				first = start
			}
			if !seen || start.After(last) {
				last = start
			}
			seen = true
		}
		sums.add(r)
	}

	buckets := []Bucket{}
	if len(bins) == 0 {
		logger.Debug("Aggregation input has no dated records",
			zap.String("granularity", g.String()),
			zap.Int("records", len(records)),
		)
		return buckets, nil
	}

	var cum Bucket
	for start := first; !start.After(last); {
		b := Bucket{PeriodStart: start}
		if sums, ok := bins[start.Unix()]; ok {
			b.NReviews = sums.reviews
			b.NAnalyzed = sums.analyzed
			b.PositiveCount = sums.positive
			b.NeutralCount = sums.neutral
			b.NegativeCount = sums.negative
			b.RatingSum = sums.rating
			b.SentimentScoreSum = sums.score
			b.WeightedSentimentSum = sums.weightedSentiment
		}

		cum.CumReviews += b.NReviews
		cum.CumAnalyzed += b.NAnalyzed
		cum.CumPositive += b.PositiveCount
		cum.CumNeutral += b.NeutralCount
		cum.CumNegative += b.NegativeCount
		cum.CumRating += b.RatingSum
		cum.CumSentimentScore += b.SentimentScoreSum
		cum.CumWeightedSentiment += b.WeightedSentimentSum

		b.CumReviews = cum.CumReviews
		b.CumAnalyzed = cum.CumAnalyzed
		b.CumPositive = cum.CumPositive
		b.CumNeutral = cum.CumNeutral
		b.CumNegative = cum.CumNegative
		b.CumRating = cum.CumRating
		b.CumSentimentScore = cum.CumSentimentScore
		b.CumWeightedSentiment = cum.CumWeightedSentiment

		deriveRatios(&b)

		if g == review.Weekly {
			b.PeriodStart = ShiftWeekStart(b.PeriodStart)
		}
		buckets = append(buckets, b)

		next, err := g.Next(start)
		if err != nil {
			return nil, err
		}
		start = next
	}

	logger.Info("Aggregation complete",
		zap.String("granularity", g.String()),
		zap.Int("records", len(records)),
		zap.Int("undated", skipped),
		zap.Int("buckets", len(buckets)),
	)

	return buckets, nil
}

func deriveRatios(b *Bucket) {
	b.AvgRating = ratio(b.CumRating, float64(b.CumReviews))
	b.PositiveRatio = ratio(float64(b.CumPositive), float64(b.CumAnalyzed))
	b.NeutralRatio = ratio(float64(b.CumNeutral), float64(b.CumAnalyzed))
	b.NegativeRatio = ratio(float64(b.CumNegative), float64(b.CumAnalyzed))

	// Nominally 0..100, but a rating-weighted ratio can exceed 1 and the
	// index is left unclamped.
	if r := ratio(b.CumWeightedSentiment, b.CumSentimentScore); r != nil {
		idx := (*r + 1) * 50
		b.SentimentIndex = &idx
	}
}

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

// ShiftWeekStart moves a Monday week boundary to the preceding Sunday, the
// week start used by the dashboard's chart renderer. It only relabels a
// bucket; it never changes which records belong to it.
func ShiftWeekStart(monday time.Time) time.Time {
	return monday.AddDate(0, 0, -1)
}

package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentience/backend/internal/review"
)

func TestSummarize_EmptySeries(t *testing.T) {
	s := Summarize(nil)

	assert.Nil(t, s.Reviews.Value)
	assert.Nil(t, s.AvgRating.Value)
	assert.Nil(t, s.SentimentIndex.Value)
	assert.Zero(t, s.Reviews.Delta)
}

func TestSummarize_ReadsLastBucket(t *testing.T) {
	buckets, err := Aggregate(sampleRecords(t), review.Daily)
	require.NoError(t, err)

	s := Summarize(buckets)

	require.NotNil(t, s.Reviews.Value)
	assert.InDelta(t, 5.0, *s.Reviews.Value, 1e-9)
	assert.InDelta(t, 2.0, s.Reviews.Delta, 1e-9)

	require.NotNil(t, s.AvgRating.Value)
	assert.InDelta(t, 13.0/5.0, *s.AvgRating.Value, 1e-9)

	require.NotNil(t, s.PositiveRatio.Value)
	assert.InDelta(t, 0.5, *s.PositiveRatio.Value, 1e-9)
	// Previous bucket: 1 positive out of 3 analyzed.
	assert.InDelta(t, 0.5-1.0/3.0, s.PositiveRatio.Delta, 1e-9)
}

func TestDelta_SkipsNilValues(t *testing.T) {
	buckets := []Bucket{
		{AvgRating: review.Float(2)},
		{AvgRating: review.Float(3)},
		{},
		{AvgRating: review.Float(4.5)},
		{},
	}

	got := Delta(buckets, func(b *Bucket) *float64 { return b.AvgRating })
	assert.InDelta(t, 1.5, got, 1e-9)
}

func TestDelta_FewerThanTwoValues(t *testing.T) {
	field := func(b *Bucket) *float64 { return b.SentimentIndex }

	assert.Zero(t, Delta(nil, field))
	assert.Zero(t, Delta([]Bucket{{SentimentIndex: review.Float(50)}}, field))
	assert.Zero(t, Delta([]Bucket{{}, {SentimentIndex: review.Float(50)}, {}}, field))
}

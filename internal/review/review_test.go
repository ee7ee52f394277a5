package review

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	for _, l := range Labels {
		got, err := ParseLabel(" " + l.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	got, err := ParseLabel("NEGATIVE")
	require.NoError(t, err)
	assert.Equal(t, Negative, got)

	_, err = ParseLabel("mixed")
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestParseLabels_Dedups(t *testing.T) {
	got, err := ParseLabels([]string{"positive", "Negative", "POSITIVE"})
	require.NoError(t, err)
	assert.Equal(t, []Label{Positive, Negative}, got)

	_, err = ParseLabels([]string{"positive", "bogus"})
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestLabelJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Label{"l": Neutral})
	require.NoError(t, err)
	assert.JSONEq(t, `{"l":"Neutral"}`, string(data))

	_, err = json.Marshal(Label(9))
	assert.Error(t, err)

	var l Label
	assert.Error(t, json.Unmarshal([]byte(`"angry"`), &l))
}

func TestParseGranularity(t *testing.T) {
	tests := map[string]Granularity{
		"D": Daily, "weekly": Weekly, "Month": Monthly, "q": Quarterly, " YEARLY ": Yearly,
	}
	for in, want := range tests {
		got, err := ParseGranularity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseGranularity("hourly")
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestGranularity_PeriodStart(t *testing.T) {
	ts := time.Date(2024, time.August, 15, 17, 30, 0, 0, time.UTC) // Thursday

	tests := []struct {
		g    Granularity
		want time.Time
	}{
		{Daily, time.Date(2024, time.August, 15, 0, 0, 0, 0, time.UTC)},
		{Weekly, time.Date(2024, time.August, 12, 0, 0, 0, 0, time.UTC)},
		{Monthly, time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{Quarterly, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{Yearly, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.g.String(), func(t *testing.T) {
			got, err := tt.g.PeriodStart(ts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Granularity(0).PeriodStart(ts)
	assert.ErrorIs(t, err, ErrInvalidGranularity)
}

func TestGranularity_WeeklyStartsMonday(t *testing.T) {
	sunday := time.Date(2024, time.January, 14, 9, 0, 0, 0, time.UTC)
	got, err := Weekly.PeriodStart(sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC), got)

	monday := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	got, err = Weekly.PeriodStart(monday)
	require.NoError(t, err)
	assert.Equal(t, monday, got)
}

func TestGranularity_Next(t *testing.T) {
	start := time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)

	next, err := Quarterly.Next(start)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), next)

	next, err = Yearly.Next(start)
	require.NoError(t, err)
	assert.Equal(t, 2024, next.Year())
}

func TestValidateColumns(t *testing.T) {
	index, err := ValidateColumns([]string{"\ufeffReview_ID", " publish_time", "rating", "review_text", "place_name"})
	require.NoError(t, err)
	assert.Equal(t, 0, index[ColumnReviewID])
	assert.Equal(t, 3, index[ColumnReviewText])
	assert.Equal(t, 4, index[ColumnPlaceName])
}

func TestValidateColumns_ReportsEveryMissingColumn(t *testing.T) {
	_, err := ValidateColumns([]string{"review_id", "review_text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{ColumnPublishTime, ColumnRating}, mce.Columns)
	assert.Equal(t, "missing required column: publish_time, rating", err.Error())
}

func TestRecord_DeriveWeightedSentiment(t *testing.T) {
	r := Record{Rating: Float(4), SentimentScore: Float(0.5)}
	r.DeriveWeightedSentiment()
	require.NotNil(t, r.WeightedSentiment)
	assert.InDelta(t, 2.0, *r.WeightedSentiment, 1e-9)

	r.Rating = nil
	r.DeriveWeightedSentiment()
	assert.Nil(t, r.WeightedSentiment)
}

func TestRecord_TextAccessors(t *testing.T) {
	var r Record
	assert.False(t, r.HasText())
	assert.Equal(t, "", r.Text())
	assert.False(t, r.HasLabel(Positive))

	r.ReviewText = String("hello")
	r.SentimentLabel = LabelPtr(Positive)
	assert.True(t, r.HasText())
	assert.Equal(t, "hello", r.Text())
	assert.True(t, r.HasLabel(Positive))
	assert.False(t, r.HasLabel(Negative))
}

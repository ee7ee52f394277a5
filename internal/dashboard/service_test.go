package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentience/backend/internal/analytics"
	"github.com/sentience/backend/internal/ingestion"
	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/internal/storage/models"
)

func at(y int, m time.Month, d int) *time.Time {
	return review.Time(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
}

func labeled(id string, ts *time.Time, rating float64, text string, l review.Label, place string) review.Record {
	r := review.Record{
		ReviewID:       id,
		PublishTime:    ts,
		Rating:         review.Float(rating),
		ReviewText:     review.String(text),
		CleanTokens:    strings.Fields(text),
		SentimentLabel: review.LabelPtr(l),
		SentimentScore: review.Float(0.9),
		PlaceName:      place,
	}
	r.DeriveWeightedSentiment()
	return r
}

func fixture() []review.Record {
	return []review.Record{
		labeled("1", at(2024, 1, 1), 5, "great fresh bread", review.Positive, "Old Town"),
		labeled("2", at(2024, 1, 2), 1, "cold bread bad", review.Negative, "Harbour"),
		labeled("3", at(2024, 2, 15), 4, "great coffee", review.Positive, "Harbour"),
		{ReviewID: "4", PublishTime: at(2024, 3, 1), Rating: review.Float(3), PlaceName: "Old Town"},
	}
}

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	hits    int
	cleared int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) Get(_ context.Context, _, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return false, nil
	}
	m.hits++
	return true, json.Unmarshal(data, dst)
}

func (m *mapCache) Set(_ context.Context, _, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *mapCache) InvalidateAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	m.cleared++
	return nil
}

type stubImporter struct {
	records []review.Record
	err     error
	started chan struct{}
	block   chan struct{}
}

func (s *stubImporter) ImportCSV(_ context.Context, source string, _ io.Reader) (*ingestion.Result, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ingestion.Result{Import: models.Import{ID: "imp", Source: source, RowsKept: len(s.records)}, Records: s.records}, nil
}

func newLoadedService(t *testing.T, cache Cache) *Service {
	t.Helper()
	s := NewService(Config{}, nil, cache, nil)
	s.Load(fixture(), nil)
	return s
}

func TestService_EmptyWorkingSet(t *testing.T) {
	s := NewService(Config{}, nil, nil, nil)

	buckets, err := s.TimeSeries(context.Background(), Filter{}, review.Daily)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	meta := s.Meta()
	assert.Zero(t, meta.Reviews)
	assert.Nil(t, meta.First)
	assert.Equal(t, []review.Granularity{review.Daily, review.Weekly}, meta.Timescales)

	_, _, ok := s.DefaultRange()
	assert.False(t, ok)
}

func TestService_TimeSeriesAppliesFilter(t *testing.T) {
	s := newLoadedService(t, nil)
	ctx := context.Background()

	all, err := s.TimeSeries(ctx, Filter{}, review.Monthly)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 4, all[2].CumReviews)

	harbour, err := s.TimeSeries(ctx, Filter{Locations: []string{"Harbour"}}, review.Monthly)
	require.NoError(t, err)
	require.Len(t, harbour, 2)
	assert.Equal(t, 2, harbour[1].CumReviews)

	january, err := s.TimeSeries(ctx, Filter{From: at(2024, 1, 2), To: at(2024, 1, 31)}, review.Daily)
	require.NoError(t, err)
	require.Len(t, january, 1)
	assert.Equal(t, 1, january[0].NegativeCount)
}

func TestService_InvalidRange(t *testing.T) {
	s := newLoadedService(t, nil)

	_, err := s.TimeSeries(context.Background(), Filter{From: at(2024, 2, 1), To: at(2024, 1, 1)}, review.Daily)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestService_KPIs(t *testing.T) {
	s := newLoadedService(t, nil)

	kpis, err := s.KPIs(context.Background(), Filter{}, review.Monthly)
	require.NoError(t, err)

	require.NotNil(t, kpis.Reviews.Value)
	assert.InDelta(t, 4, *kpis.Reviews.Value, 1e-9)
	assert.InDelta(t, 1, kpis.Reviews.Delta, 1e-9)
	require.NotNil(t, kpis.AvgRating.Value)
	assert.InDelta(t, 13.0/4.0, *kpis.AvgRating.Value, 1e-9)
}

func TestService_NgramsByLabel(t *testing.T) {
	s := newLoadedService(t, nil)
	ctx := context.Background()

	positive, err := s.Ngrams(ctx, Filter{}, NgramQuery{Labels: []review.Label{review.Positive}, N: 1})
	require.NoError(t, err)
	require.NotEmpty(t, positive)
	assert.Equal(t, analytics.Ngram{"great"}, positive[0].Ngram)
	assert.Equal(t, 2, positive[0].Count)
	for _, c := range positive {
		assert.NotEqual(t, "cold", c.Ngram.String())
	}

	all, err := s.Ngrams(ctx, Filter{}, NgramQuery{N: 1, Top: 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Count)

	_, err = s.Ngrams(ctx, Filter{}, NgramQuery{N: 4})
	assert.ErrorIs(t, err, ErrInvalidNgramOrder)
}

func TestService_EvidenceCapsResults(t *testing.T) {
	s := NewService(Config{MaxEvidence: 1}, nil, nil, nil)
	s.Load(fixture(), nil)

	page, err := s.Evidence(context.Background(), Filter{}, analytics.EvidenceQuery{
		Text:   "bread",
		Sort:   analytics.SortLatest,
		Labels: review.Labels,
	}, 50)
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	assert.True(t, page.Truncated)
	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "2", page.Reviews[0].ReviewID)
}

func TestService_Distributions(t *testing.T) {
	s := newLoadedService(t, nil)

	d, err := s.Distributions(context.Background(), Filter{Locations: []string{"Old Town"}})
	require.NoError(t, err)

	assert.Equal(t, 1, d.Ratings.Ratings[0].Count)
	assert.Equal(t, 5, d.Ratings.Ratings[0].Rating)
	assert.Equal(t, 1, d.Ratings.Ratings[2].Count)
	assert.Equal(t, []analytics.LabelCount{
		{Label: review.Positive, Count: 1},
		{Label: review.Neutral, Count: 0},
		{Label: review.Negative, Count: 0},
	}, d.Labels.Labels)
	assert.Equal(t, 1, d.Labels.Unlabeled)
}

func TestService_MetaAndTimescales(t *testing.T) {
	s := newLoadedService(t, nil)

	meta := s.Meta()
	assert.Equal(t, 4, meta.Reviews)
	assert.Equal(t, []string{"Harbour", "Old Town"}, meta.Locations)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *meta.First)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *meta.Last)
	assert.Equal(t, []review.Granularity{review.Daily, review.Weekly, review.Monthly}, meta.Timescales)

	assert.Equal(t, []review.Granularity{review.Daily, review.Weekly},
		s.Timescales(Filter{From: at(2024, 2, 1)}))
}

func TestService_CachesPerVersion(t *testing.T) {
	cache := newMapCache()
	s := newLoadedService(t, cache)
	ctx := context.Background()

	first, err := s.TimeSeries(ctx, Filter{}, review.Monthly)
	require.NoError(t, err)
	second, err := s.TimeSeries(ctx, Filter{}, review.Monthly)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, first[len(first)-1].CumReviews, second[len(second)-1].CumReviews)

	s.Load(fixture()[:1], nil)
	third, err := s.TimeSeries(ctx, Filter{}, review.Monthly)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Len(t, third, 1)
}

func TestService_ImportSwapsSnapshot(t *testing.T) {
	cache := newMapCache()
	imp := &stubImporter{records: fixture()[:2]}
	s := NewService(Config{}, imp, cache, nil)
	before := s.Snapshot().Version

	summary, err := s.Import(context.Background(), "upload.csv", strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "upload.csv", summary.Source)
	assert.Greater(t, s.Snapshot().Version, before)
	assert.Len(t, s.Snapshot().Records, 2)
	assert.Equal(t, summary, s.Meta().Import)
	assert.Equal(t, 1, cache.cleared)
}

func TestService_ImportFailureKeepsWorkingSet(t *testing.T) {
	imp := &stubImporter{err: &review.MissingColumnError{Columns: []string{"rating"}}}
	s := NewService(Config{}, imp, nil, nil)
	s.Load(fixture(), nil)

	_, err := s.Import(context.Background(), "bad.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, review.ErrMissingColumn)
	assert.Len(t, s.Snapshot().Records, 4)
}

func TestService_ImportRequiresImporter(t *testing.T) {
	s := NewService(Config{}, nil, nil, nil)
	_, err := s.Import(context.Background(), "x.csv", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrNoImporter))
}

func TestService_RejectsConcurrentImport(t *testing.T) {
	imp := &stubImporter{started: make(chan struct{}), block: make(chan struct{})}
	s := NewService(Config{}, imp, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Import(context.Background(), "a.csv", strings.NewReader(""))
		done <- err
	}()

	<-imp.started

	_, err := s.Import(context.Background(), "b.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrImportInProgress)

	close(imp.block)
	assert.NoError(t, <-done)
}

func TestFilter_ApplyLeavesInputAlone(t *testing.T) {
	records := fixture()
	out := Filter{Locations: []string{"Harbour"}}.Apply(records)

	require.Len(t, out, 2)
	assert.Len(t, records, 4)
	assert.Equal(t, "1", records[0].ReviewID)

	undated := []review.Record{{ReviewID: "x"}}
	assert.Len(t, Filter{}.Apply(undated), 1)
	assert.Empty(t, Filter{From: at(2020, 1, 1)}.Apply(undated))
}

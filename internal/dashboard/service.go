// Package dashboard serves analytics over the current review working set.
// The working set is an immutable snapshot swapped atomically on import.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sentience/backend/internal/analytics"
	"github.com/sentience/backend/internal/ingestion"
	"github.com/sentience/backend/internal/metrics"
	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/internal/storage/models"
	"github.com/sentience/backend/pkg/logger"
)

var (
	ErrNoImporter        = errors.New("review import is not configured")
	ErrImportInProgress  = errors.New("another import is in progress")
	ErrInvalidNgramOrder = errors.New("invalid n-gram order")
	ErrInvalidRange      = errors.New("invalid date range")
)

// Cache stores computed results keyed by working-set version.
type Cache interface {
	Get(ctx context.Context, kind, key string, dst any) (bool, error)
	Set(ctx context.Context, kind, key string, value any, ttl time.Duration) error
	InvalidateAll(ctx context.Context) error
}

// KeyFunc builds a cache key from a result kind, snapshot version and
// request parameters.
type KeyFunc func(kind string, version uint64, params ...string) string

type Importer interface {
	ImportCSV(ctx context.Context, source string, r io.Reader) (*ingestion.Result, error)
}

type Config struct {
	DefaultLookbackDays int
	TopNgrams           int
	MaxEvidence         int
	CacheTTL            time.Duration
}

// Snapshot is one immutable version of the working set.
type Snapshot struct {
	Version   uint64
	Records   []review.Record
	Import    *models.Import
	First     time.Time
	Last      time.Time
	HasDates  bool
	Locations []string
}

type Service struct {
	cfg      Config
	importer Importer
	cache    Cache
	key      KeyFunc

	snapshot atomic.Pointer[Snapshot]
	versions atomic.Uint64
	importMu sync.Mutex
}

// NewService builds a service with an empty working set. importer and cache
// may be nil.
func NewService(cfg Config, importer Importer, cache Cache, key KeyFunc) *Service {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = 365
	}
	if cfg.TopNgrams <= 0 {
		cfg.TopNgrams = 20
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = 200
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cache != nil && key == nil {
		key = defaultKey
	}

	s := &Service{cfg: cfg, importer: importer, cache: cache, key: key}
	s.Load(nil, nil)
	return s
}

func defaultKey(kind string, version uint64, params ...string) string {
	key := kind + ":" + strconv.FormatUint(version, 10)
	for _, p := range params {
		key += ":" + p
	}
	return key
}

// Load replaces the working set. records must not be modified afterwards.
func (s *Service) Load(records []review.Record, imp *models.Import) *Snapshot {
	if records == nil {
		records = []review.Record{}
	}

	snap := &Snapshot{
		Version:   s.versions.Add(1),
		Records:   records,
		Import:    imp,
		Locations: locationsOf(records),
	}
	snap.First, snap.Last, snap.HasDates = analytics.DateSpan(records)

	s.snapshot.Store(snap)
	metrics.WorkingSetReviews.Set(float64(len(records)))

	logger.Info("Working set loaded",
		zap.Uint64("version", snap.Version),
		zap.Int("reviews", len(records)),
		zap.Int("locations", len(snap.Locations)),
	)
	return snap
}

func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Import runs a CSV import and swaps in the resulting working set. Only one
// import runs at a time.
func (s *Service) Import(ctx context.Context, source string, r io.Reader) (*models.Import, error) {
	if s.importer == nil {
		return nil, ErrNoImporter
	}
	if !s.importMu.TryLock() {
		return nil, ErrImportInProgress
	}
	defer s.importMu.Unlock()

	res, err := s.importer.ImportCSV(ctx, source, r)
	if err != nil {
		return nil, err
	}

	imp := res.Import
	s.Load(res.Records, &imp)

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			logger.Warn("Failed to invalidate result cache", zap.Error(err))
		}
	}
	return &imp, nil
}

// Meta describes the working set for building dashboard controls.
type Meta struct {
	Version     uint64               `json:"version"`
	Reviews     int                  `json:"reviews"`
	Import      *models.Import       `json:"import,omitempty"`
	First       *time.Time           `json:"first_date"`
	Last        *time.Time           `json:"last_date"`
	DefaultFrom *time.Time           `json:"default_from"`
	DefaultTo   *time.Time           `json:"default_to"`
	Locations   []string             `json:"locations"`
	Timescales  []review.Granularity `json:"timescales"`
}

func (s *Service) Meta() Meta {
	snap := s.Snapshot()
	meta := Meta{
		Version:    snap.Version,
		Reviews:    len(snap.Records),
		Import:     snap.Import,
		Locations:  snap.Locations,
		Timescales: []review.Granularity{review.Daily, review.Weekly},
	}
	if snap.HasDates {
		from, to := analytics.DefaultRange(snap.First, snap.Last, s.cfg.DefaultLookbackDays)
		meta.First = review.Time(snap.First)
		meta.Last = review.Time(snap.Last)
		meta.DefaultFrom = review.Time(from)
		meta.DefaultTo = review.Time(to)
		meta.Timescales = analytics.Timescales(from, to)
	}
	return meta
}

// DefaultRange is the trailing lookback window of the working set. ok is
// false when no review has a publish date.
func (s *Service) DefaultRange() (from, to time.Time, ok bool) {
	snap := s.Snapshot()
	if !snap.HasDates {
		return time.Time{}, time.Time{}, false
	}
	from, to = analytics.DefaultRange(snap.First, snap.Last, s.cfg.DefaultLookbackDays)
	return from, to, true
}

// Locations lists the distinct place names in the working set.
func (s *Service) Locations() []string {
	return s.Snapshot().Locations
}

// Timescales lists the granularities offered for f's range, clamped to the
// data span.
func (s *Service) Timescales(f Filter) []review.Granularity {
	snap := s.Snapshot()
	if !snap.HasDates {
		return []review.Granularity{review.Daily, review.Weekly}
	}
	from, to := snap.First, snap.Last
	if f.From != nil && f.From.After(from) {
		from = *f.From
	}
	if f.To != nil && f.To.Before(to) {
		to = *f.To
	}
	return analytics.Timescales(from, to)
}

func (s *Service) TimeSeries(ctx context.Context, f Filter, g review.Granularity) ([]analytics.Bucket, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	return cached(ctx, s, snap, "timeseries", []string{f.cacheKey(), g.String()}, func() ([]analytics.Bucket, error) {
		defer metrics.ObserveEngine("aggregate", time.Now())
		return analytics.Aggregate(f.Apply(snap.Records), g)
	})
}

func (s *Service) KPIs(ctx context.Context, f Filter, g review.Granularity) (analytics.KPISummary, error) {
	buckets, err := s.TimeSeries(ctx, f, g)
	if err != nil {
		return analytics.KPISummary{}, err
	}
	return analytics.Summarize(buckets), nil
}

// NgramQuery selects the reviews and table for an n-gram ranking.
type NgramQuery struct {
	// Labels restricts counting to reviews with these labels. Empty counts
	// every review.
	Labels []review.Label
	N      int
	// Top caps the result. Zero uses the configured default.
	Top int
}

func (s *Service) Ngrams(ctx context.Context, f Filter, q NgramQuery) ([]analytics.NgramCount, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	if q.N < 1 || q.N > analytics.MaxNgramOrder {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNgramOrder, q.N)
	}
	if q.Top <= 0 {
		q.Top = s.cfg.TopNgrams
	}

	snap := s.Snapshot()
	params := []string{f.cacheKey(), labelsKey(q.Labels), strconv.Itoa(q.N), strconv.Itoa(q.Top)}
	return cached(ctx, s, snap, "ngrams", params, func() ([]analytics.NgramCount, error) {
		defer metrics.ObserveEngine("ngrams", time.Now())

		records := f.Apply(snap.Records)
		if len(q.Labels) > 0 {
			records = withLabels(records, q.Labels)
		}
		table, err := analytics.CountNgrams(records).Table(q.N)
		if err != nil {
			return nil, err
		}
		return table.Top(q.Top), nil
	})
}

// EvidencePage is a capped evidence result.
type EvidencePage struct {
	Total     int             `json:"total"`
	Truncated bool            `json:"truncated"`
	Reviews   []review.Record `json:"reviews"`
}

// Evidence runs an evidence search and returns at most limit reviews, or the
// configured maximum when limit is out of range.
func (s *Service) Evidence(ctx context.Context, f Filter, q analytics.EvidenceQuery, limit int) (EvidencePage, error) {
	if err := validate(f); err != nil {
		return EvidencePage{}, err
	}
	if limit <= 0 || limit > s.cfg.MaxEvidence {
		limit = s.cfg.MaxEvidence
	}

	snap := s.Snapshot()
	params := []string{f.cacheKey(), q.Text, q.Sort.String(), labelsKey(q.Labels), strconv.Itoa(limit)}
	return cached(ctx, s, snap, "evidence", params, func() (EvidencePage, error) {
		defer metrics.ObserveEngine("evidence", time.Now())

		matches, err := analytics.SearchEvidence(f.Apply(snap.Records), q)
		if err != nil {
			return EvidencePage{}, err
		}
		page := EvidencePage{Total: len(matches), Reviews: matches}
		if len(matches) > limit {
			page.Reviews = matches[:limit]
			page.Truncated = true
		}
		return page, nil
	})
}

// Distributions pairs the star and label breakdowns of a filtered set.
type Distributions struct {
	Ratings analytics.RatingDistribution `json:"ratings"`
	Labels  analytics.LabelDistribution  `json:"labels"`
}

func (s *Service) Distributions(ctx context.Context, f Filter) (Distributions, error) {
	if err := validate(f); err != nil {
		return Distributions{}, err
	}
	snap := s.Snapshot()
	return cached(ctx, s, snap, "distributions", []string{f.cacheKey()}, func() (Distributions, error) {
		records := f.Apply(snap.Records)
		return Distributions{
			Ratings: analytics.RatingDistributionOf(records),
			Labels:  analytics.LabelDistributionOf(records),
		}, nil
	})
}

// cached serves compute's result from the cache when one is configured.
// Cache failures are logged and fall back to computing.
func cached[T any](ctx context.Context, s *Service, snap *Snapshot, kind string, params []string, compute func() (T, error)) (T, error) {
	if s.cache == nil {
		return compute()
	}

	key := s.key(kind, snap.Version, params...)
	var out T
	hit, err := s.cache.Get(ctx, kind, key, &out)
	if err != nil {
		logger.Warn("Result cache read failed", zap.String("kind", kind), zap.Error(err))
	}
	if hit {
		return out, nil
	}

	out, err = compute()
	if err != nil {
		return out, err
	}
	if err := s.cache.Set(ctx, kind, key, out, s.cfg.CacheTTL); err != nil {
		logger.Warn("Result cache write failed", zap.String("kind", kind), zap.Error(err))
	}
	return out, nil
}

func validate(f Filter) error {
	if f.From != nil && f.To != nil && truncateDay(*f.From).After(truncateDay(*f.To)) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange, f.From.Format(dateLayout), f.To.Format(dateLayout))
	}
	return nil
}

func withLabels(records []review.Record, labels []review.Label) []review.Record {
	out := make([]review.Record, 0, len(records))
	for i := range records {
		if l := records[i].SentimentLabel; l != nil && slices.Contains(labels, *l) {
			out = append(out, records[i])
		}
	}
	return out
}

func labelsKey(labels []review.Label) string {
	present := make([]bool, len(review.Labels)+1)
	for _, l := range labels {
		if l.Valid() {
			present[l] = true
		}
	}
	key := ""
	for _, l := range review.Labels {
		if present[l] {
			key += l.String()[:3]
		}
	}
	return key
}

func locationsOf(records []review.Record) []string {
	seen := make(map[string]struct{})
	locations := []string{}
	for i := range records {
		name := records[i].PlaceName
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			locations = append(locations, name)
		}
	}
	slices.Sort(locations)
	return locations
}

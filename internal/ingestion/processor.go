// Package ingestion loads review CSV exports into an enriched working set:
// formatted, cleaned, tokenized and sentiment-classified records.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/metrics"
	"github.com/sentience/backend/internal/nlp/sentiment"
	"github.com/sentience/backend/internal/nlp/tokenizer"
	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/internal/storage/models"
	"github.com/sentience/backend/pkg/logger"
)

// ErrClassifierResponse reports a classifier reply that cannot be applied to
// the batch it was asked about.
var ErrClassifierResponse = errors.New("invalid classifier response")

// Store persists a finished import.
type Store interface {
	ReplaceReviews(ctx context.Context, imp *models.Import, records []review.Record) error
}

// Result is the outcome of a successful import.
type Result struct {
	Import  models.Import
	Records []review.Record
}

type Processor struct {
	tokenizer  tokenizer.Tokenizer
	classifier sentiment.Classifier
	store      Store
	now        func() time.Time
}

func NewProcessor(tok tokenizer.Tokenizer, classifier sentiment.Classifier, store Store) *Processor {
	return &Processor{
		tokenizer:  tok,
		classifier: classifier,
		store:      store,
		now:        time.Now,
	}
}

// ImportCSV reads a review export from r, enriches it and replaces the
// stored working set. A missing required column fails before any row is
// processed; so does any tokenizer, classifier or store error.
func (p *Processor) ImportCSV(ctx context.Context, source string, r io.Reader) (*Result, error) {
	start := p.now()
	logger.Info("Starting review import", zap.String("source", source))

	res, err := p.importCSV(ctx, source, r, start)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("error").Inc()
		logger.Error("Review import failed", zap.String("source", source), zap.Error(err))
		return nil, err
	}

	metrics.ImportsTotal.WithLabelValues("success").Inc()
	metrics.ReviewsImported.WithLabelValues("kept").Add(float64(res.Import.RowsKept))
	metrics.ReviewsImported.WithLabelValues("dropped").Add(float64(res.Import.DuplicatesDropped + res.Import.MissingIDs))
	metrics.ReviewsImported.WithLabelValues("analyzed").Add(float64(res.Import.Analyzed))

	logger.Info("Review import completed",
		zap.String("import_id", res.Import.ID),
		zap.Int("rows_read", res.Import.RowsRead),
		zap.Int("rows_kept", res.Import.RowsKept),
		zap.Int("analyzed", res.Import.Analyzed),
		zap.Int64("duration_ms", res.Import.DurationMS),
	)
	return res, nil
}

func (p *Processor) importCSV(ctx context.Context, source string, r io.Reader, start time.Time) (*Result, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}

	records, stats := formatRows(t)
	logger.Debug("Rows formatted",
		zap.Int("rows", len(t.rows)),
		zap.Int("kept", len(records)),
		zap.Int("duplicates", stats.duplicates),
	)

	texts, positions := cleanRecords(records)

	if err := p.tokenize(records, texts, positions); err != nil {
		return nil, err
	}
	if err := p.classify(ctx, records, texts, positions); err != nil {
		return nil, err
	}

	imp := models.Import{
		ID:                uuid.New().String(),
		Source:            source,
		RowsRead:          len(t.rows),
		DuplicatesDropped: stats.duplicates,
		MissingIDs:        stats.missingIDs,
		RowsKept:          len(records),
		WithText:          len(texts),
		Analyzed:          len(texts),
		InvalidDates:      stats.invalidDates,
		InvalidRatings:    stats.invalidRatings,
		CreatedAt:         start.UTC(),
	}
	imp.DurationMS = p.now().Sub(start).Milliseconds()

	if err := p.store.ReplaceReviews(ctx, &imp, records); err != nil {
		return nil, fmt.Errorf("failed to store import: %w", err)
	}

	return &Result{Import: imp, Records: records}, nil
}

// cleanRecords normalizes review text in place and returns the cleaned texts
// with the index of the record each came from.
func cleanRecords(records []review.Record) ([]string, []int) {
	var texts []string
	var positions []int
	for i := range records {
		r := &records[i]
		if r.ReviewText == nil {
			continue
		}
		text, ok := cleanText(*r.ReviewText)
		if !ok {
			r.ReviewText = nil
			continue
		}
		r.ReviewText = review.String(text)
		texts = append(texts, text)
		positions = append(positions, i)
	}
	return texts, positions
}

func (p *Processor) tokenize(records []review.Record, texts []string, positions []int) error {
	for j, text := range texts {
		tokens, err := p.tokenizer.Tokenize(text)
		if err != nil {
			return fmt.Errorf("failed to tokenize review %s: %w", records[positions[j]].ReviewID, err)
		}
		if tokens == nil {
			tokens = []string{}
		}
		records[positions[j]].CleanTokens = tokens
	}
	return nil
}

func (p *Processor) classify(ctx context.Context, records []review.Record, texts []string, positions []int) error {
	if len(texts) == 0 {
		return nil
	}

	results, err := p.classifier.Classify(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to classify reviews: %w", err)
	}
	if len(results) != len(texts) {
		return fmt.Errorf("%w: %d results for %d reviews", ErrClassifierResponse, len(results), len(texts))
	}

	for j, res := range results {
		if !res.Label.Valid() {
			return fmt.Errorf("%w: label %d for review %s", ErrClassifierResponse, int(res.Label), records[positions[j]].ReviewID)
		}
		r := &records[positions[j]]
		r.SentimentLabel = review.LabelPtr(res.Label)
		r.SentimentScore = review.Float(res.Score)
		r.DeriveWeightedSentiment()
	}
	return nil
}

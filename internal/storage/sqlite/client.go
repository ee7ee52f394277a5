package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/internal/storage/models"
	"github.com/sentience/backend/pkg/logger"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS imports (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		rows_read INTEGER NOT NULL,
		duplicates_dropped INTEGER NOT NULL,
		missing_ids INTEGER NOT NULL,
		rows_kept INTEGER NOT NULL,
		with_text INTEGER NOT NULL,
		analyzed INTEGER NOT NULL,
		invalid_dates INTEGER NOT NULL,
		invalid_ratings INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_imports_created ON imports(created_at);

	CREATE TABLE IF NOT EXISTS reviews (
		review_id TEXT PRIMARY KEY,
		import_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		publish_time TEXT,
		rating REAL,
		review_text TEXT,
		clean_tokens TEXT,
		sentiment_label TEXT,
		sentiment_score REAL,
		weighted_sentiment REAL,
		place_name TEXT NOT NULL DEFAULT '',
		reply_publish_time TEXT,
		FOREIGN KEY (import_id) REFERENCES imports(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_position ON reviews(position);
	CREATE INDEX IF NOT EXISTS idx_reviews_place ON reviews(place_name);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// ReplaceReviews records imp and swaps the stored working set for records
// in one transaction. Record order is preserved by LoadReviews.
func (c *Client) ReplaceReviews(ctx context.Context, imp *models.Import, records []review.Record) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM reviews`); err != nil {
		return fmt.Errorf("failed to clear reviews: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, source, rows_read, duplicates_dropped, missing_ids, rows_kept,
			with_text, analyzed, invalid_dates, invalid_ratings, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.ID,
		imp.Source,
		imp.RowsRead,
		imp.DuplicatesDropped,
		imp.MissingIDs,
		imp.RowsKept,
		imp.WithText,
		imp.Analyzed,
		imp.InvalidDates,
		imp.InvalidRatings,
		imp.DurationMS,
		imp.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reviews (review_id, import_id, position, publish_time, rating, review_text,
			clean_tokens, sentiment_label, sentiment_score, weighted_sentiment, place_name, reply_publish_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare review insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]

		var tokens sql.NullString
		if r.CleanTokens != nil {
			data, mErr := json.Marshal(r.CleanTokens)
			if mErr != nil {
				err = fmt.Errorf("failed to encode tokens for %s: %w", r.ReviewID, mErr)
				return err
			}
			tokens = sql.NullString{String: string(data), Valid: true}
		}

		var label sql.NullString
		if r.SentimentLabel != nil {
			label = sql.NullString{String: r.SentimentLabel.String(), Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			r.ReviewID,
			imp.ID,
			i,
			nullTime(r.PublishTime),
			nullFloat(r.Rating),
			nullString(r.ReviewText),
			tokens,
			label,
			nullFloat(r.SentimentScore),
			nullFloat(r.WeightedSentiment),
			r.PlaceName,
			nullTime(r.ReplyPublishTime),
		)
		if err != nil {
			return fmt.Errorf("failed to insert review %s: %w", r.ReviewID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reviews: %w", err)
	}

	logger.Info("Working set replaced",
		zap.String("import_id", imp.ID),
		zap.Int("reviews", len(records)),
	)
	return nil
}

// LoadReviews returns the stored working set in import order.
func (c *Client) LoadReviews(ctx context.Context) ([]review.Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT review_id, publish_time, rating, review_text, clean_tokens, sentiment_label,
			sentiment_score, weighted_sentiment, place_name, reply_publish_time
		FROM reviews
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	records := []review.Record{}
	for rows.Next() {
		var (
			r                       review.Record
			rating, score, weighted              sql.NullFloat64
			publish, reply, text, tokens, label sql.NullString
		)
		if err := rows.Scan(&r.ReviewID, &publish, &rating, &text, &tokens, &label,
			&score, &weighted, &r.PlaceName, &reply); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		if r.PublishTime, err = timeFrom(publish); err != nil {
			return nil, fmt.Errorf("review %s: %w", r.ReviewID, err)
		}
		if r.ReplyPublishTime, err = timeFrom(reply); err != nil {
			return nil, fmt.Errorf("review %s: %w", r.ReviewID, err)
		}
		r.Rating = floatFrom(rating)
		r.SentimentScore = floatFrom(score)
		r.WeightedSentiment = floatFrom(weighted)
		if text.Valid {
			r.ReviewText = review.String(text.String)
		}
		if tokens.Valid {
			if err := json.Unmarshal([]byte(tokens.String), &r.CleanTokens); err != nil {
				return nil, fmt.Errorf("failed to decode tokens for %s: %w", r.ReviewID, err)
			}
		}
		if label.Valid {
			l, err := review.ParseLabel(label.String)
			if err != nil {
				return nil, fmt.Errorf("review %s: %w", r.ReviewID, err)
			}
			r.SentimentLabel = &l
		}

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reviews: %w", err)
	}

	return records, nil
}

// LatestImport returns the most recent import or ErrNotFound.
func (c *Client) LatestImport(ctx context.Context) (*models.Import, error) {
	imports, err := c.ListImports(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(imports) == 0 {
		return nil, ErrNotFound
	}
	return &imports[0], nil
}

func (c *Client) ListImports(ctx context.Context, limit int) ([]models.Import, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source, rows_read, duplicates_dropped, missing_ids, rows_kept, with_text, analyzed,
			invalid_dates, invalid_ratings, duration_ms, created_at
		FROM imports
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var imports []models.Import
	for rows.Next() {
		var imp models.Import
		var createdAt int64
		if err := rows.Scan(&imp.ID, &imp.Source, &imp.RowsRead, &imp.DuplicatesDropped, &imp.MissingIDs, &imp.RowsKept,
			&imp.WithText, &imp.Analyzed, &imp.InvalidDates, &imp.InvalidRatings, &imp.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imp.CreatedAt = time.Unix(0, createdAt).UTC()
		imports = append(imports, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read imports: %w", err)
	}

	return imports, nil
}

// timeLayout is fixed width so stored UTC times sort as text for every
// four-digit year.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func timeFrom(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored time %q: %w", v.String, err)
	}
	return review.Time(t.UTC()), nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatFrom(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return review.Float(v.Float64)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

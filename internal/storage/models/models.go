package models

import "time"

// Import describes one CSV load into the working set.
type Import struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	RowsRead          int       `json:"rows_read"`
	DuplicatesDropped int       `json:"duplicates_dropped"`
	MissingIDs        int       `json:"missing_ids"`
	RowsKept          int       `json:"rows_kept"`
	WithText          int       `json:"with_text"`
	Analyzed          int       `json:"analyzed"`
	InvalidDates      int       `json:"invalid_dates"`
	InvalidRatings    int       `json:"invalid_ratings"`
	DurationMS        int64     `json:"duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

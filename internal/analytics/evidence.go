package analytics

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sentience/backend/internal/review"
)

// SortMode orders evidence results.
type SortMode int

const (
	SortLatest SortMode = iota + 1
	SortHighestRating
	SortLowestRating
)

func (s SortMode) String() string {
	switch s {
	case SortLatest:
		return "Latest"
	case SortHighestRating:
		return "Highest Rating"
	case SortLowestRating:
		return "Lowest Rating"
	default:
		return fmt.Sprintf("SortMode(%d)", int(s))
	}
}

func (s SortMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseSortMode accepts "Latest", "Highest Rating", "lowest_rating" and
// similar spellings.
func ParseSortMode(s string) (SortMode, error) {
	normalized := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case "", "latest", "newest":
		return SortLatest, nil
	case "highestrating", "highest", "ratingdesc":
		return SortHighestRating, nil
	case "lowestrating", "lowest", "ratingasc":
		return SortLowestRating, nil
	default:
		return 0, fmt.Errorf("%w: %q", review.ErrInvalidSortMode, s)
	}
}

// EvidenceQuery selects reviews for manual inspection.
type EvidenceQuery struct {
	// Text is matched case-insensitively as a substring of the review text.
	// Empty matches every record.
	Text string
	Sort SortMode
	// Labels is the set of allowed sentiment labels. An empty set selects
	// nothing.
	Labels []review.Label
}

// SearchEvidence filters records by text and sentiment label and orders the
// matches by sort mode. Missing sort keys order last; remaining ties keep
// input order. The result is a new slice; records is left untouched.
func SearchEvidence(records []review.Record, q EvidenceQuery) ([]review.Record, error) {
	compare, err := evidenceComparator(q.Sort)
	if err != nil {
		return nil, err
	}

	matches := []review.Record{}
	if len(q.Labels) == 0 {
		return matches, nil
	}

	needle := strings.ToLower(q.Text)
	for i := range records {
		r := &records[i]
		if !labelAllowed(r.SentimentLabel, q.Labels) {
			continue
		}
		if needle != "" && (!r.HasText() || !strings.Contains(strings.ToLower(*r.ReviewText), needle)) {
			continue
		}
		matches = append(matches, *r)
	}

	slices.SortStableFunc(matches, compare)
	return matches, nil
}

func labelAllowed(label *review.Label, allowed []review.Label) bool {
	return label != nil && slices.Contains(allowed, *label)
}

func evidenceComparator(mode SortMode) (func(a, b review.Record) int, error) {
	switch mode {
	case SortLatest:
		return func(a, b review.Record) int {
			return compareTimeDesc(a.PublishTime, b.PublishTime)
		}, nil
	case SortHighestRating:
		return func(a, b review.Record) int {
			if c := compareRating(a.Rating, b.Rating, true); c != 0 {
				return c
			}
			return compareTimeDesc(a.PublishTime, b.PublishTime)
		}, nil
	case SortLowestRating:
		return func(a, b review.Record) int {
			if c := compareRating(a.Rating, b.Rating, false); c != 0 {
				return c
			}
			return compareTimeDesc(a.PublishTime, b.PublishTime)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", review.ErrInvalidSortMode, int(mode))
	}
}

func compareTimeDesc(a, b *time.Time) int {
	if c, done := compareMissing(a == nil, b == nil); done {
		return c
	}
	return b.Compare(*a)
}

func compareRating(a, b *float64, desc bool) int {
	if c, done := compareMissing(a == nil, b == nil); done {
		return c
	}
	if desc {
		return cmp.Compare(*b, *a)
	}
	return cmp.Compare(*a, *b)
}

// compareMissing orders missing values after present ones.
func compareMissing(aMissing, bMissing bool) (int, bool) {
	switch {
	case aMissing && bMissing:
		return 0, true
	case aMissing:
		return 1, true
	case bMissing:
		return -1, true
	}
	return 0, false
}

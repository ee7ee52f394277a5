package dashboard

import (
	"slices"
	"strings"
	"time"

	"github.com/sentience/backend/internal/review"
)

const dateLayout = "2006-01-02"

// Filter narrows the working set before any engine runs.
type Filter struct {
	// From and To bound publish dates inclusively. Nil leaves that side
	// open. Reviews without a publish time are excluded once either bound
	// is set.
	From *time.Time
	To   *time.Time
	// Locations selects place names. Empty selects every location.
	Locations []string
}

func (f Filter) bounded() bool {
	return f.From != nil || f.To != nil
}

func (f Filter) match(r *review.Record) bool {
	if len(f.Locations) > 0 && !slices.Contains(f.Locations, r.PlaceName) {
		return false
	}
	if !f.bounded() {
		return true
	}
	if r.PublishTime == nil {
		return false
	}
	day := truncateDay(*r.PublishTime)
	if f.From != nil && day.Before(truncateDay(*f.From)) {
		return false
	}
	if f.To != nil && day.After(truncateDay(*f.To)) {
		return false
	}
	return true
}

// Apply returns the records matching f. The input slice is never modified;
// an unrestricted filter returns it as is.
func (f Filter) Apply(records []review.Record) []review.Record {
	if !f.bounded() && len(f.Locations) == 0 {
		return records
	}
	out := make([]review.Record, 0, len(records))
	for i := range records {
		if f.match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// cacheKey renders f canonically for use in result cache keys.
func (f Filter) cacheKey() string {
	var b strings.Builder
	if f.From != nil {
		b.WriteString(f.From.Format(dateLayout))
	}
	b.WriteByte('|')
	if f.To != nil {
		b.WriteString(f.To.Format(dateLayout))
	}
	b.WriteByte('|')
	locations := slices.Clone(f.Locations)
	slices.Sort(locations)
	b.WriteString(strings.Join(slices.Compact(locations), "\x1f"))
	return b.String()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

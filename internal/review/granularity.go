package review

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Granularity is the calendar period used to bucket reviews.
type Granularity int

const (
	Daily Granularity = iota + 1
	Weekly
	Monthly
	Quarterly
	Yearly
)

// Granularities lists every granularity from finest to coarsest.
var Granularities = []Granularity{Daily, Weekly, Monthly, Quarterly, Yearly}

func (g Granularity) String() string {
	switch g {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	case Quarterly:
		return "Quarterly"
	case Yearly:
		return "Yearly"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

func (g Granularity) Valid() bool {
	switch g {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// ParseGranularity accepts names ("weekly") and the short codes D, W, M, Q, Y.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "d":
		return Daily, nil
	case "weekly", "week", "w":
		return Weekly, nil
	case "monthly", "month", "m":
		return Monthly, nil
	case "quarterly", "quarter", "q":
		return Quarterly, nil
	case "yearly", "year", "y":
		return Yearly, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

// PeriodStart returns the start of the period containing t. Weekly periods
// start on Monday.
func (g Granularity) PeriodStart(t time.Time) (time.Time, error) {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case Daily:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case Weekly:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc), nil
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
	case Quarterly:
		first := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, first, 1, 0, 0, 0, 0, loc), nil
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidGranularity, int(g))
	}
}

// Next returns the start of the period following the one starting at start.
func (g Granularity) Next(start time.Time) (time.Time, error) {
	switch g {
	case Daily:
		return start.AddDate(0, 0, 1), nil
	case Weekly:
		return start.AddDate(0, 0, 7), nil
	case Monthly:
		return start.AddDate(0, 1, 0), nil
	case Quarterly:
		return start.AddDate(0, 3, 0), nil
	case Yearly:
		return start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidGranularity, int(g))
	}
}

func (g Granularity) MarshalJSON() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGranularity, int(g))
	}
	return json.Marshal(g.String())
}

func (g *Granularity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGranularity(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

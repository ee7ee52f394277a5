package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Label is the sentiment class assigned to a review.
type Label int

const (
	Positive Label = iota + 1
	Neutral
	Negative
)

// Labels lists every label in display order.
var Labels = []Label{Positive, Neutral, Negative}

func (l Label) String() string {
	switch l {
	case Positive:
		return "Positive"
	case Neutral:
		return "Neutral"
	case Negative:
		return "Negative"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

func (l Label) Valid() bool {
	switch l {
	case Positive, Neutral, Negative:
		return true
	}
	return false
}

// ParseLabel accepts the canonical names case-insensitively.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return Positive, nil
	case "neutral":
		return Neutral, nil
	case "negative":
		return Negative, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, s)
	}
}

// ParseLabels parses a list of label names, dropping duplicates.
func ParseLabels(names []string) ([]Label, error) {
	out := make([]Label, 0, len(names))
	seen := make(map[Label]bool, len(names))
	for _, name := range names {
		l, err := ParseLabel(name)
		if err != nil {
			return nil, err
		}
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out, nil
}

func (l Label) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLabel, int(l))
	}
	return json.Marshal(l.String())
}

func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Package sentiment assigns a sentiment label and confidence to review texts.
package sentiment

import (
	"context"

	"github.com/sentience/backend/internal/review"
)

// Result is the classification of one text.
type Result struct {
	Label review.Label `json:"label"`
	Score float64      `json:"score"`
}

// Classifier labels texts. The returned slice is parallel to texts.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]Result, error)
}

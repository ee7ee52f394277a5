// Package tokenizer turns review text into normalized terms for n-gram
// counting.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// Tokenizer produces the ordered clean tokens for a review text.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

type Options struct {
	// ExtraStopwords are dropped in addition to the built-in lists.
	ExtraStopwords []string
	// MinLength drops tokens shorter than this many letters.
	MinLength int
}

// Prose tokenizes with prose's iterative tokenizer, then lower-cases, keeps
// purely alphabetic tokens and drops stopwords.
type Prose struct {
	stopwords map[string]struct{}
	minLength int
}

func NewProse(opts Options) *Prose {
	stop := make(map[string]struct{}, len(englishStopwords)+len(polishStopwords)+len(opts.ExtraStopwords))
	for _, list := range [][]string{englishStopwords, polishStopwords, opts.ExtraStopwords} {
		for _, w := range list {
			stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
	return &Prose{stopwords: stop, minLength: opts.MinLength}
}

func (p *Prose) Tokenize(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize text: %w", err)
	}

	tokens := doc.Tokens()
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		word := strings.ToLower(tok.Text)
		if !isAlpha(word) || len([]rune(word)) < p.minLength {
			continue
		}
		if _, stop := p.stopwords[word]; stop {
			continue
		}
		out = append(out, word)
	}
	return out, nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

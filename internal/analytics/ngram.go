package analytics

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/pkg/logger"
)

// MaxNgramOrder is the longest n-gram counted.
const MaxNgramOrder = 3

// ngramKeySep cannot occur inside a cleaned token.
const ngramKeySep = "\x1f"

// Ngram is an ordered tuple of consecutive tokens from one review.
type Ngram []string

// String joins the tokens with single spaces.
func (n Ngram) String() string {
	return strings.Join(n, " ")
}

func (n Ngram) key() string {
	return strings.Join(n, ngramKeySep)
}

// NgramCount pairs an n-gram with its number of occurrences.
type NgramCount struct {
	Ngram Ngram `json:"ngram"`
	Count int   `json:"count"`
}

// NgramTable counts n-grams of a single order. Entries keep the order in
// which each n-gram was first seen; that order breaks count ties.
type NgramTable struct {
	n       int
	entries []NgramCount
	index   map[string]int
}

func newNgramTable(n int) *NgramTable {
	return &NgramTable{n: n, index: make(map[string]int)}
}

func (t *NgramTable) add(gram Ngram) {
	key := gram.key()
	if i, ok := t.index[key]; ok {
		t.entries[i].Count++
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, NgramCount{Ngram: slices.Clone(gram), Count: 1})
}

// N returns the order of the table.
func (t *NgramTable) N() int {
	return t.n
}

// Len returns the number of distinct n-grams.
func (t *NgramTable) Len() int {
	return len(t.entries)
}

// Count returns the occurrences of the given tokens as an n-gram.
func (t *NgramTable) Count(tokens ...string) int {
	i, ok := t.index[Ngram(tokens).key()]
	if !ok {
		return 0
	}
	return t.entries[i].Count
}

// Entries returns every n-gram in first-seen order.
func (t *NgramTable) Entries() []NgramCount {
	return slices.Clone(t.entries)
}

// Top returns the k most frequent n-grams, count descending with ties in
// first-seen order. k <= 0 returns the full ranking.
func (t *NgramTable) Top(k int) []NgramCount {
	ranked := slices.Clone(t.entries)
	slices.SortStableFunc(ranked, func(a, b NgramCount) int {
		return b.Count - a.Count
	})
	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

func (t *NgramTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		N       int          `json:"n"`
		Entries []NgramCount `json:"entries"`
	}{N: t.n, Entries: t.Top(0)})
}

// NgramDistribution holds the unigram, bigram and trigram tables of one
// working set.
type NgramDistribution struct {
	tables [MaxNgramOrder]*NgramTable
}

// Table returns the table of order n (1..MaxNgramOrder).
func (d *NgramDistribution) Table(n int) (*NgramTable, error) {
	if n < 1 || n > MaxNgramOrder {
		return nil, fmt.Errorf("n-gram order must be between 1 and %d, got %d", MaxNgramOrder, n)
	}
	return d.tables[n-1], nil
}

func (d *NgramDistribution) Unigrams() *NgramTable { return d.tables[0] }
func (d *NgramDistribution) Bigrams() *NgramTable  { return d.tables[1] }
func (d *NgramDistribution) Trigrams() *NgramTable { return d.tables[2] }

// CountNgrams builds all three n-gram tables in one pass over records with
// tokens. N-grams never cross record boundaries, and a record with fewer
// than n tokens adds nothing to the order-n table.
func CountNgrams(records []review.Record) *NgramDistribution {
	d := &NgramDistribution{}
	for n := 1; n <= MaxNgramOrder; n++ {
		d.tables[n-1] = newNgramTable(n)
	}

	tokenized := 0
	for i := range records {
		tokens := records[i].CleanTokens
		if tokens == nil {
			continue
		}
		tokenized++
		for n := 1; n <= MaxNgramOrder; n++ {
			for _, gram := range ExtractNgrams(tokens, n) {
				d.tables[n-1].add(gram)
			}
		}
	}

	logger.Info("N-gram distribution calculated",
		zap.Int("records", tokenized),
		zap.Int("unigrams", d.tables[0].Len()),
		zap.Int("bigrams", d.tables[1].Len()),
		zap.Int("trigrams", d.tables[2].Len()),
	)

	return d
}

// ExtractNgrams returns the order-n windows over tokens. The returned n-grams
// share memory with tokens.
func ExtractNgrams(tokens []string, n int) []Ngram {
	if n < 1 || len(tokens) < n {
		return nil
	}
	grams := make([]Ngram, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, Ngram(tokens[i:i+n:i+n]))
	}
	return grams
}

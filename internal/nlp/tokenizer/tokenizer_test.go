package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProse_KeepsLowercaseAlphabeticNonStopwords(t *testing.T) {
	tok := NewProse(Options{})

	got, err := tok.Tokenize("The pizza was GREAT and the staff friendly!")
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "great", "staff", "friendly"}, got)
}

func TestProse_DropsNumbersAndPunctuation(t *testing.T) {
	tok := NewProse(Options{})

	got, err := tok.Tokenize("Waited 45 minutes , again")
	require.NoError(t, err)
	assert.Equal(t, []string{"waited", "minutes"}, got)
}

func TestProse_PolishStopwordsAndLetters(t *testing.T) {
	tok := NewProse(Options{})

	got, err := tok.Tokenize("Jedzenie jest bardzo smaczne")
	require.NoError(t, err)
	assert.Equal(t, []string{"jedzenie", "smaczne"}, got)
}

func TestProse_ExtraStopwordsAndMinLength(t *testing.T) {
	tok := NewProse(Options{ExtraStopwords: []string{"Pizza"}, MinLength: 3})

	got, err := tok.Tokenize("ok pizza tasty")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasty"}, got)
}

func TestProse_BlankText(t *testing.T) {
	got, err := NewProse(Options{}).Tokenize("   ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

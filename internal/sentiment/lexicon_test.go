package sentiment

import (
	"math"
	"testing"

	"github.com/spacesedan/xpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexiconScorer_Scenario(t *testing.T) {
	scorer := NewLexiconScorer()

	texts := []string{"I love this!", "This is terrible", "meh, ok"}
	want := []models.Label{models.LabelPositive, models.LabelNegative, models.LabelNeutral}

	for i, text := range texts {
		got := scorer.Score(text)
		assert.Equal(t, want[i], got.Label, text)
		assert.Equal(t, math.Abs(got.Score), got.Confidence, text)
		assert.Empty(t, got.Reasoning, text)
	}
}

func TestLexiconScorer_EmptyText(t *testing.T) {
	scorer := NewLexiconScorer()

	for _, text := range []string{"", "   ", "12345", "https://example.com/only-a-link"} {
		got := scorer.Score(text)
		assert.Equal(t, models.SentimentResult{Label: models.LabelNeutral}, got, "text %q", text)
	}
}

func TestLexiconScorer_Deterministic(t *testing.T) {
	scorer := NewLexiconScorer()
	other := NewLexiconScorer()

	text := "Great launch, but the app is slow and buggy. Still love it."
	first := scorer.Score(text)

	for range 5 {
		assert.Equal(t, first, scorer.Score(text))
	}
	assert.Equal(t, first, other.Score(text))
}

func TestLexiconScorer_ScoreIsClamped(t *testing.T) {
	scorer := NewLexiconScorer()

	got := scorer.Score("love love love love love love love love great great amazing")

	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, models.LabelPositive, got.Label)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestLexiconScorer_SlangOverlay(t *testing.T) {
	scorer := NewLexiconScorer()

	assert.Less(t, scorer.Score("smh fml").Score, 0.0)
	assert.Greater(t, scorer.Score("this album is the goat").Score, 0.2)
}

func TestLexiconScorer_ScoreAll(t *testing.T) {
	scorer := NewLexiconScorer()
	items := []models.AnalysisItem{{Text: "I love this!"}, {Text: ""}, {Text: "This is terrible", ImageBase64: "aGk="}}

	got := scorer.ScoreAll(items)

	require.Len(t, got, 3)
	assert.Equal(t, scorer.Score("I love this!"), got[0])
	assert.Equal(t, models.LabelNeutral, got[1].Label)
	assert.Equal(t, scorer.Score("This is terrible"), got[2])
}

func TestConvertMarkdownToText(t *testing.T) {
	got := ConvertMarkdownToText("**Wow** this is [great](https://example.com/x) & more www.example.com")

	assert.Equal(t, "Wow this is great & more", got)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"don't", "panic", "it's", "fine"}, Tokenize("Don't PANIC, it's *fine*"))
	assert.Empty(t, Tokenize(""))
}

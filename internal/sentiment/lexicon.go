package sentiment

import (
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
	"github.com/spacesedan/xpulse/internal/models"
)

// LEXICON_NORMALIZER divides the summed token weights before clamping.
const LEXICON_NORMALIZER = 5.0

var (
	linkPattern  = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	tokenPattern = regexp.MustCompile(`[a-z0-9']+`)
)

// slangWeights overlays the VADER lexicon with terms common on social feeds.
var slangWeights = map[string]float64{
	"meh":    -1.0,
	"mid":    -1.0,
	"smh":    -1.5,
	"fml":    -2.0,
	"cringe": -1.5,
	"trash":  -1.8,
	"ratio":  -0.5,
	"goat":   2.5,
	"based":  1.0,
	"lit":    1.5,
	"fire":   1.2,
	"bussin": 2.0,
	"slaps":  1.8,
}

type LexiconScorer struct {
	weights map[string]float64
}

// NewLexiconScorer copies the VADER word weights once. The scorer is read-only
// afterwards and safe for concurrent use.
func NewLexiconScorer() *LexiconScorer {
	vader := govader.NewSentimentIntensityAnalyzer()

	weights := make(map[string]float64, len(vader.Lexicon)+len(slangWeights))
	for word, weight := range vader.Lexicon {
		weights[strings.ToLower(word)] = weight
	}
	for word, weight := range slangWeights {
		weights[word] = weight
	}

	return &LexiconScorer{weights: weights}
}

func (s *LexiconScorer) Score(text string) models.SentimentResult {
	var sum float64
	for _, token := range Tokenize(text) {
		sum += s.weights[token]
	}

	score := models.Clamp(sum/LEXICON_NORMALIZER, -1, 1)
	return models.SentimentResult{
		Score:      score,
		Label:      models.LabelFromScore(score),
		Confidence: math.Abs(score),
	}
}

// ScoreAll resolves every item locally, preserving order.
func (s *LexiconScorer) ScoreAll(items []models.AnalysisItem) []models.SentimentResult {
	results := make([]models.SentimentResult, len(items))
	for i, item := range items {
		results[i] = s.Score(item.Text)
	}
	return results
}

func Tokenize(text string) []string {
	plain := strings.ToLower(ConvertMarkdownToText(text))
	plain = strings.ReplaceAll(plain, "’", "'")
	return tokenPattern.FindAllString(plain, -1)
}

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1")
	return urlPattern.ReplaceAllString(input, "")
}

// ConvertMarkdownToText renders markdown and strips the resulting markup so
// only the visible words remain.
func ConvertMarkdownToText(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	output := blackfriday.Run([]byte(RemoveLinks(input)), blackfriday.WithNoExtensions())
	plainText := html.UnescapeString(tagPattern.ReplaceAllString(string(output), " "))

	return RemoveLinks(strings.Join(strings.Fields(plainText), " "))
}

package models

import "math"

type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

const (
	POSITIVE_THRESHOLD = 0.2
	NEGATIVE_THRESHOLD = -0.2
)

// LabelFromScore applies the strict ±0.2 thresholds.
func LabelFromScore(score float64) Label {
	switch {
	case score > POSITIVE_THRESHOLD:
		return LabelPositive
	case score < NEGATIVE_THRESHOLD:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

func (l Label) Valid() bool {
	switch l {
	case LabelPositive, LabelNegative, LabelNeutral:
		return true
	}
	return false
}

type SentimentResult struct {
	Score      float64 `json:"score"`
	Label      Label   `json:"label"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
}

// AnalysisItem is a single post as handed to the analyzer. ImageBase64 holds
// the raw base64 body with no data URI prefix.
type AnalysisItem struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

func (a AnalysisItem) HasImage() bool {
	return a.ImageBase64 != ""
}

// RemoteResult is one element of the model's JSON array. Pointer fields record
// whether the model sent them at all.
type RemoteResult struct {
	Score      *float64 `json:"score"`
	Label      string   `json:"label"`
	Reasoning  string   `json:"reasoning"`
	Confidence *float64 `json:"confidence"`
}

func (r RemoteResult) HasScore() bool {
	return r.Score != nil && !math.IsNaN(*r.Score) && !math.IsInf(*r.Score, 0)
}

func (r RemoteResult) Normalize() SentimentResult {
	var score float64
	if r.HasScore() {
		score = Clamp(*r.Score, -1, 1)
	}

	label := Label(r.Label)
	if !label.Valid() {
		label = LabelFromScore(score)
	}

	confidence := math.Abs(score)
	if r.Confidence != nil && !math.IsNaN(*r.Confidence) {
		confidence = Clamp(*r.Confidence, 0, 1)
	}

	return SentimentResult{
		Score:      score,
		Label:      label,
		Reasoning:  r.Reasoning,
		Confidence: confidence,
	}
}

// ProgressFunc receives a copy of the results resolved so far and their count.
type ProgressFunc func(partial []SentimentResult, count int)

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

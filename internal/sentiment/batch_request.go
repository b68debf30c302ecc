package sentiment

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/spacesedan/xpulse/internal/models"
)

const (
	// MAX_VISION_ITEMS is how many leading items a vision request carries.
	MAX_VISION_ITEMS = 4

	// MAX_PROMPT_RUNES truncates each item's text inside the prompt only.
	MAX_PROMPT_RUNES = 500

	DEFAULT_MIME = "image/jpeg"
)

const (
	batchSystemPrompt = "You are an expert sentiment analyst. Always respond with valid JSON arrays. " +
		"Consider nuance like sarcasm and context."

	visionSystemPrompt = "Expert multimodal sentiment analyst. Score sentiment from -1 to 1, " +
		"factor in visual cues like facial expressions."

	singleSystemPrompt = "You are an expert sentiment analyst. Analyze the text and provide a sentiment score " +
		"from -1 (very negative) to 1 (very positive), considering nuance like sarcasm. " +
		`Respond with JSON: {"score": number, "label": "positive|negative|neutral", ` +
		`"reasoning": "brief explanation", "confidence": number}`

	resultShape = `[{"score": num, "label": "positive|negative|neutral", "reasoning": "brief", "confidence": num}]`
)

type Models struct {
	Text   string
	Vision string
}

// BatchRequest is one chat completion covering Processed. Items past
// len(Processed) are never sent.
type BatchRequest struct {
	Params    openai.ChatCompletionNewParams
	Model     string
	Processed []models.AnalysisItem
	Total     int
	Vision    bool
}

func (r BatchRequest) ProcessedCount() int {
	return len(r.Processed)
}

func BuildBatchRequest(items []models.AnalysisItem, m Models, temperature float64) BatchRequest {
	if !anyImage(items) {
		return BatchRequest{
			Params: openai.ChatCompletionNewParams{
				Model: m.Text,
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(batchSystemPrompt),
					openai.UserMessage(textBatchPrompt(items)),
				},
				Temperature: openai.Float(temperature),
			},
			Model:     m.Text,
			Processed: items,
			Total:     len(items),
		}
	}

	processed := items[:min(len(items), MAX_VISION_ITEMS)]

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(visionBatchPrompt(processed)),
	}
	for _, item := range processed {
		if !item.HasImage() {
			continue
		}
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: DataURI(item.ImageBase64),
		}))
	}

	return BatchRequest{
		Params: openai.ChatCompletionNewParams{
			Model: m.Vision,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(visionSystemPrompt),
				openai.UserMessage(parts),
			},
			Temperature: openai.Float(temperature),
		},
		Model:     m.Vision,
		Processed: processed,
		Total:     len(items),
		Vision:    true,
	}
}

// BuildSingleRequest asks for one JSON object instead of an array.
func BuildSingleRequest(item models.AnalysisItem, m Models, temperature float64) BatchRequest {
	return BatchRequest{
		Params: openai.ChatCompletionNewParams{
			Model: m.Text,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(singleSystemPrompt),
				openai.UserMessage(fmt.Sprintf("Analyze this text: %q", truncateRunes(item.Text, MAX_PROMPT_RUNES))),
			},
			Temperature: openai.Float(temperature),
		},
		Model:     m.Text,
		Processed: []models.AnalysisItem{item},
		Total:     1,
	}
}

func textBatchPrompt(items []models.AnalysisItem) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, truncateRunes(item.Text, MAX_PROMPT_RUNES))
	}

	return fmt.Sprintf("Analyze these %d texts for sentiment (-1 to 1) with reasoning. "+
		"Output a JSON array of exactly %d objects in the same order: %s\n\n%s",
		len(items), len(items), resultShape, strings.Join(lines, "\n\n"))
}

func visionBatchPrompt(items []models.AnalysisItem) string {
	lines := make([]string, len(items))
	for i, item := range items {
		line := fmt.Sprintf("%d. Text: %s", i+1, truncateRunes(item.Text, MAX_PROMPT_RUNES))
		if item.HasImage() {
			line += " (Image provided - analyze visual context)"
		}
		lines[i] = line
	}

	return fmt.Sprintf("You are a vision analyst detecting emotions and context. "+
		"Analyze sentiment from -1 (very negative) to 1 (very positive), factoring in visual cues "+
		"like facial expressions, memes, and context.\n\n"+
		"Examples: Happy face + positive text = 0.8, Sarcastic meme = -0.3, Neutral image = 0.0.\n\n"+
		"Output a JSON array of exactly %d objects in the same order: %s\n\n%s",
		len(items), resultShape, strings.Join(lines, "\n\n"))
}

// DataURI wraps a raw base64 image body, sniffing its type from the first bytes.
func DataURI(imageBase64 string) string {
	return "data:" + sniffMime(imageBase64) + ";base64," + imageBase64
}

func sniffMime(imageBase64 string) string {
	// 684 base64 chars decode to the 512 bytes DetectContentType reads.
	prefix := imageBase64[:min(len(imageBase64), 684)]
	prefix = prefix[:len(prefix)-len(prefix)%4]

	head, err := base64.StdEncoding.DecodeString(prefix)
	if err != nil || len(head) == 0 {
		return DEFAULT_MIME
	}

	mime := http.DetectContentType(head)
	if !strings.HasPrefix(mime, "image/") {
		return DEFAULT_MIME
	}
	return mime
}

func anyImage(items []models.AnalysisItem) bool {
	for _, item := range items {
		if item.HasImage() {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

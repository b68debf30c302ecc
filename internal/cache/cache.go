package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/spacesedan/xpulse/internal/models"
)

const KEY_PREFIX = "sentiment:"

// Store maps a batch key to its reconciled results. Entries are write-once:
// Set on a live key is ignored. Callers must treat returned slices as read-only.
type Store interface {
	Get(ctx context.Context, key string) ([]models.SentimentResult, bool)
	Set(ctx context.Context, key string, results []models.SentimentResult)
}

type keyEntry struct {
	Text     string `json:"text"`
	HasImage bool   `json:"hasImage"`
}

// Key derives the cache key from the ordered (text, hasImage) pairs. Image
// bytes do not take part, only their presence.
func Key(items []models.AnalysisItem) string {
	entries := make([]keyEntry, len(items))
	for i, item := range items {
		entries[i] = keyEntry{Text: item.Text, HasImage: item.HasImage()}
	}

	// Marshalling a slice of plain structs cannot fail.
	raw, _ := json.Marshal(entries)
	sum := sha256.Sum256(raw)
	return KEY_PREFIX + hex.EncodeToString(sum[:])
}

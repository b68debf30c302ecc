package utils

import (
	"context"
	"log/slog"

	"github.com/spacesedan/xpulse/internal/models"
)

type ImageFetcher interface {
	FetchBase64(ctx context.Context, url string) (string, error)
}

// PostToAnalysisItem turns a post into analyzer input. Only the first media URL
// is fetched; a failed fetch leaves the item text-only.
func PostToAnalysisItem(ctx context.Context, post models.Post, images ImageFetcher) models.AnalysisItem {
	item := models.AnalysisItem{Text: post.Text}
	if images == nil || len(post.MediaURLs) == 0 {
		return item
	}

	encoded, err := images.FetchBase64(ctx, post.MediaURLs[0])
	if err != nil {
		slog.Warn("[Utils] Failed to fetch post image, analyzing text only",
			slog.String("post_id", post.ID),
			slog.String("url", post.MediaURLs[0]),
			slog.String("error", err.Error()))
		return item
	}

	item.ImageBase64 = encoded
	return item
}

package sentiment

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spacesedan/xpulse/internal/metrics"
	"github.com/spacesedan/xpulse/internal/models"
)

// reconciler maps a model answer back onto the requested items. Whatever the
// answer looks like, the output has exactly one result per item.
type reconciler struct {
	scorer *LexiconScorer
	log    *slog.Logger
}

func newReconciler(scorer *LexiconScorer, log *slog.Logger) *reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &reconciler{scorer: scorer, log: log}
}

// Reconcile backfills per index. Elements past processed are dropped and items
// past processed are always scored locally.
func (r *reconciler) Reconcile(elements []json.RawMessage, items []models.AnalysisItem, processed int) []models.SentimentResult {
	processed = min(processed, len(items))
	if len(elements) != processed {
		r.log.Warn("[Reconciler] Result count differs from item count, backfilling",
			slog.Int("expected", processed),
			slog.Int("received", len(elements)))
		metrics.SentimentLengthMismatchTotal.Inc()
	}

	results := make([]models.SentimentResult, len(items))
	remote := 0
	for i, item := range items {
		if i < processed && i < len(elements) {
			if result, ok := ParseElement(elements[i]); ok {
				results[i] = result
				remote++
				continue
			}
		}
		results[i] = r.scorer.Score(item.Text)
	}

	metrics.SentimentResultsTotal.WithLabelValues("remote").Add(float64(remote))
	metrics.SentimentResultsTotal.WithLabelValues("lexicon").Add(float64(len(items) - remote))

	return results
}

// ReconcileStream drains body, reporting each element within the processed
// range to onProgress, then strictly parses the accumulated content.
func (r *reconciler) ReconcileStream(body io.Reader, items []models.AnalysisItem, processed int, onProgress models.ProgressFunc) ([]models.SentimentResult, error) {
	processed = min(processed, len(items))
	stream := NewResultStream(body, r.log)
	partial := make([]models.SentimentResult, 0, processed)

	for index, raw := range stream.Elements() {
		if index >= processed {
			continue
		}

		result, ok := ParseElement(raw)
		if !ok {
			result = r.scorer.Score(items[index].Text)
		}
		partial = append(partial, result)

		if onProgress != nil {
			onProgress(slices.Clone(partial), len(partial))
		}
	}

	if stream.State() == StreamFailed {
		return nil, fmt.Errorf("read stream: %w", stream.Err())
	}
	if stream.Skipped() > 0 {
		r.log.Warn("[Reconciler] Skipped malformed stream events",
			slog.Int("skipped", stream.Skipped()))
	}

	elements, err := ExtractArray(stream.Content())
	if err != nil {
		return nil, err
	}

	return r.Reconcile(elements, items, processed), nil
}

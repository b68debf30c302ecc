package sentiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/spacesedan/xpulse/config"
	"github.com/spacesedan/xpulse/internal/cache"
	"github.com/spacesedan/xpulse/internal/clients"
	"github.com/spacesedan/xpulse/internal/metrics"
	"github.com/spacesedan/xpulse/internal/models"
	"golang.org/x/sync/singleflight"
)

const (
	DEFAULT_TEMPERATURE    = 0.3
	DEFAULT_STREAM_TIMEOUT = 60 * time.Second
)

// Completer is the remote model surface the analyzer needs. *clients.GrokClient
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error)
	Stream(ctx context.Context, params openai.ChatCompletionNewParams) (io.ReadCloser, error)
}

// ClientFactory builds the client for one API key. The analyzer calls it once
// per key and reuses the result.
type ClientFactory func(apiKey string) Completer

// GrokClientFactory returns a factory that builds a GrokClient per key from cfg.
func GrokClientFactory(cfg clients.GrokConfig) ClientFactory {
	return func(apiKey string) Completer {
		keyed := cfg
		keyed.APIKey = apiKey
		return clients.NewGrokClient(keyed)
	}
}

type Settings struct {
	Models        Models
	Temperature   float64
	StreamTimeout time.Duration
}

// Analyzer resolves batches of items to sentiment results. Every call returns
// exactly one result per item, falling back to the lexicon scorer on any
// remote failure. It is safe for concurrent use.
type Analyzer struct {
	scorer    *LexiconScorer
	store     cache.Store
	newClient ClientFactory
	settings  Settings

	mu      sync.Mutex
	clients map[string]Completer
	group   singleflight.Group
}

func NewAnalyzer(scorer *LexiconScorer, store cache.Store, newClient ClientFactory, settings Settings) *Analyzer {
	if scorer == nil {
		scorer = NewLexiconScorer()
	}
	if store == nil {
		store = cache.NewMemoryCache(cache.MemoryOptions{})
	}
	if settings.Models.Text == "" {
		settings.Models.Text = config.DEFAULT_GROK_TEXT_MODEL
	}
	if settings.Models.Vision == "" {
		settings.Models.Vision = config.DEFAULT_GROK_VISION_MODEL
	}
	if settings.StreamTimeout <= 0 {
		settings.StreamTimeout = DEFAULT_STREAM_TIMEOUT
	}

	return &Analyzer{
		scorer:    scorer,
		store:     store,
		newClient: newClient,
		settings:  settings,
		clients:   make(map[string]Completer),
	}
}

// AnalyzeBatch uses one non-streaming call for text-only batches and the
// streaming path as soon as any item carries an image.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, items []models.AnalysisItem, apiKey string, onProgress models.ProgressFunc) []models.SentimentResult {
	return a.analyze(ctx, items, apiKey, onProgress, anyImage(items))
}

// StreamBatch always streams, reporting each element to onProgress as it
// arrives.
func (a *Analyzer) StreamBatch(ctx context.Context, items []models.AnalysisItem, apiKey string, onProgress models.ProgressFunc) []models.SentimentResult {
	return a.analyze(ctx, items, apiKey, onProgress, true)
}

func (a *Analyzer) analyze(ctx context.Context, items []models.AnalysisItem, apiKey string, onProgress models.ProgressFunc, stream bool) []models.SentimentResult {
	if len(items) == 0 {
		return []models.SentimentResult{}
	}

	path := "batch"
	if stream {
		path = "stream"
	}
	log := slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("path", path))

	if apiKey == "" || a.newClient == nil {
		log.Debug("[Analyzer] No API key, scoring locally", slog.Int("items", len(items)))
		metrics.SentimentResultsTotal.WithLabelValues("lexicon").Add(float64(len(items)))
		return a.scorer.ScoreAll(items)
	}

	key := cache.Key(items)
	if cached, ok := a.cached(ctx, key, len(items), log); ok {
		log.Debug("[Analyzer] Cache hit", slog.String("key", key))
		return cached
	}

	leader := false
	out, _, _ := a.group.Do(key, func() (interface{}, error) {
		leader = true

		// an earlier leader may have finished between the miss and Do
		if cached, ok := a.cached(ctx, key, len(items), log); ok {
			return cached, nil
		}

		start := time.Now()
		var (
			results []models.SentimentResult
			err     error
		)
		if stream {
			results, err = a.runStream(ctx, items, apiKey, onProgress, log)
		} else {
			results, err = a.runBatch(ctx, items, apiKey, onProgress, log)
		}

		if err != nil {
			reason := fallbackReason(err)
			log.Warn("[Analyzer] Remote analysis failed, falling back to lexicon",
				slog.String("reason", reason),
				slog.Int("items", len(items)),
				slog.String("error", err.Error()))
			metrics.SentimentFallbacksTotal.WithLabelValues(path, reason).Inc()
			metrics.SentimentResultsTotal.WithLabelValues("lexicon").Add(float64(len(items)))
			return a.scorer.ScoreAll(items), nil
		}

		a.store.Set(ctx, key, results)
		log.Info("[Analyzer] Batch analyzed",
			slog.Int("items", len(items)),
			slog.Duration("duration", time.Since(start)))
		return results, nil
	})

	if !leader {
		metrics.SingleflightSharedTotal.Inc()
		log.Debug("[Analyzer] Joined in-flight request", slog.String("key", key))
	}

	return out.([]models.SentimentResult)
}

// cached treats an entry whose length differs from the batch as a miss.
func (a *Analyzer) cached(ctx context.Context, key string, n int, log *slog.Logger) ([]models.SentimentResult, bool) {
	results, ok := a.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if len(results) != n {
		log.Warn("[Analyzer] Ignoring cached entry with wrong length",
			slog.String("key", key),
			slog.Int("expected", n),
			slog.Int("cached", len(results)))
		return nil, false
	}
	return results, true
}

func (a *Analyzer) runBatch(ctx context.Context, items []models.AnalysisItem, apiKey string, onProgress models.ProgressFunc, log *slog.Logger) ([]models.SentimentResult, error) {
	req := BuildBatchRequest(items, a.settings.Models, a.settings.Temperature)
	if len(items) == 1 {
		req = BuildSingleRequest(items[0], a.settings.Models, a.settings.Temperature)
	}

	content, err := a.client(apiKey).Complete(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	elements, err := ExtractResults(content)
	if err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}

	results := newReconciler(a.scorer, log).Reconcile(elements, items, req.ProcessedCount())
	if onProgress != nil {
		onProgress(append([]models.SentimentResult(nil), results...), len(results))
	}
	return results, nil
}

func (a *Analyzer) runStream(ctx context.Context, items []models.AnalysisItem, apiKey string, onProgress models.ProgressFunc, log *slog.Logger) ([]models.SentimentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.settings.StreamTimeout)
	defer cancel()

	req := BuildBatchRequest(items, a.settings.Models, a.settings.Temperature)
	log.Debug("[Analyzer] Opening stream",
		slog.String("model", req.Model),
		slog.Int("processed", req.ProcessedCount()),
		slog.Int("total", req.Total))

	body, err := a.client(apiKey).Stream(ctx, req.Params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// unblocks a pending Read once the deadline passes
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	results, err := newReconciler(a.scorer, log).ReconcileStream(body, items, req.ProcessedCount(), onProgress)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("stream: %w", ctxErr)
		}
		return nil, err
	}
	return results, nil
}

func (a *Analyzer) client(apiKey string) Completer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[apiKey]; ok {
		return c
	}
	c := a.newClient(apiKey)
	a.clients[apiKey] = c
	return c
}

func fallbackReason(err error) string {
	var status int
	if code, ok := clients.StatusCode(err); ok {
		status = code
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case status == 429:
		return "rate_limited"
	case status != 0:
		return "status"
	case errors.Is(err, ErrNoJSONArray), errors.Is(err, ErrNoJSONObject):
		return "parse"
	case errors.Is(err, clients.ErrStreamUnavailable), errors.Is(err, clients.ErrEmptyCompletion):
		return "empty"
	}
	return "transport"
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spacesedan/xpulse/config"
	"github.com/spacesedan/xpulse/internal/cache"
	"github.com/spacesedan/xpulse/internal/clients"
	"github.com/spacesedan/xpulse/internal/logging"
	"github.com/spacesedan/xpulse/internal/models"
	"github.com/spacesedan/xpulse/internal/monitoring"
	"github.com/spacesedan/xpulse/internal/sentiment"
	"github.com/spacesedan/xpulse/internal/stats"
	"github.com/spacesedan/xpulse/internal/utils"
)

func main() {
	input := flag.String("input", "", "path to a JSON array of posts (default: stdin)")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	flag.Parse()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	cfg := config.Load()
	logging.InitLoggerTo(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, *input, *metricsAddr, os.Stdout)
	stop()
	if err != nil {
		slog.Error("[Main] Analyzer failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run analyzes the posts at input and writes them to out. Deferred cleanup
// always runs before it returns.
func run(ctx context.Context, cfg config.Config, input, metricsAddr string, out io.Writer) error {
	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	store, closeStore, err := buildCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	defer closeStore()

	retry := clients.RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialBackoff,
		Clock:        clockwork.NewRealClock(),
	}
	grokCfg := clients.GrokConfig{
		APIKey:            cfg.GrokAPIKey,
		BaseURL:           cfg.GrokBaseURL,
		RequestTimeout:    cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             retry,
	}

	healthy := &atomic.Bool{}
	healthy.Store(true)

	var factory sentiment.ClientFactory
	var images utils.ImageFetcher
	if cfg.GrokAPIKey != "" {
		grok := clients.NewGrokClient(grokCfg)
		fallback := sentiment.GrokClientFactory(grokCfg)
		factory = func(apiKey string) sentiment.Completer {
			if apiKey == cfg.GrokAPIKey {
				return grok
			}
			return fallback(apiKey)
		}
		images = clients.NewImageClient(cfg.RequestTimeout, retry)

		monitorCtx, stopMonitor := context.WithCancel(ctx)
		defer stopMonitor()
		go monitoring.MonitorGrokHealth(monitorCtx, grok, healthy, nil)
	} else {
		slog.Warn("[Main] GROK_API_KEY not set, every post will be scored by the lexicon")
	}

	analyzer := sentiment.NewAnalyzer(sentiment.NewLexiconScorer(), store, factory, sentiment.Settings{
		Models:        sentiment.Models{Text: cfg.TextModel, Vision: cfg.VisionModel},
		Temperature:   cfg.Temperature,
		StreamTimeout: cfg.StreamTimeout,
	})

	posts, err := readPosts(input)
	if err != nil {
		return fmt.Errorf("read posts: %w", err)
	}

	start := time.Now()
	analyzePosts(ctx, analyzer, posts, images, cfg.GrokAPIKey, cfg.BatchSize, healthy)

	trends := stats.DetectTrends(posts, time.Now())
	summary := stats.CalculateStats(posts, trends)
	logSummary(summary, trends, time.Since(start))

	if err := writePosts(out, posts); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

type pendingPost struct {
	index int
	item  models.AnalysisItem
}

// analyzePosts attaches a sentiment to every post, batchSize posts per call.
func analyzePosts(ctx context.Context, analyzer *sentiment.Analyzer, posts []models.Post, images utils.ImageFetcher, apiKey string, batchSize int, healthy *atomic.Bool) {
	buffer := utils.NewBatchBuffer[pendingPost](batchSize)

	flush := func() {
		buffer.LogBatchProcessing("posts")
		batch := buffer.GetAndClear()
		if len(batch) == 0 {
			return
		}
		if healthy != nil && !healthy.Load() {
			slog.Warn("[Main] Grok circuit is open, this batch will likely fall back",
				slog.Int("posts", len(batch)))
		}

		items := make([]models.AnalysisItem, len(batch))
		for i, p := range batch {
			items[i] = p.item
		}

		results := analyzer.AnalyzeBatch(ctx, items, apiKey, func(partial []models.SentimentResult, count int) {
			slog.Debug("[Main] Batch progress",
				slog.Int("resolved", count),
				slog.Int("total", len(items)))
		})

		for i, p := range batch {
			result := results[i]
			posts[p.index].Sentiment = &result
		}
	}

	for i := range posts {
		item := utils.PostToAnalysisItem(ctx, posts[i], images)
		if buffer.Add(pendingPost{index: i, item: item}) {
			flush()
		}
	}
	if buffer.HasData() {
		flush()
	}
}

func buildCache(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "", "memory":
		memory := cache.NewMemoryCache(cache.MemoryOptions{
			Capacity: cfg.CacheCapacity,
			TTL:      cfg.CacheTTL,
		})
		stopEviction := func() {}
		if cfg.CacheTTL > 0 {
			stopEviction = memory.StartEvictionTimer(cfg.CacheTTL)
		}
		return memory, stopEviction, nil

	case "valkey":
		client, err := clients.NewValkeyClient(ctx, clients.ValkeyConfig{
			Address:  cfg.ValkeyAddress,
			Password: cfg.ValkeyPassword,
			UseTLS:   cfg.ValkeyTLS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect valkey: %w", err)
		}
		return cache.NewValkeyCache(client, cfg.CacheTTL), client.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
}

func readPosts(path string) ([]models.Post, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return decodePosts(r)
}

func decodePosts(r io.Reader) ([]models.Post, error) {
	var posts []models.Post
	if err := json.NewDecoder(r).Decode(&posts); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Post{}, nil
		}
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func writePosts(w io.Writer, posts []models.Post) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(posts)
}

func logSummary(summary models.DashboardStats, trends []models.TrendTopic, elapsed time.Duration) {
	attrs := []any{
		slog.Int("posts", summary.TotalPosts),
		slog.Float64("average_sentiment", summary.AverageSentiment),
		slog.Int("engagement", summary.TotalEngagement),
		slog.Int("trending_topics", summary.TrendingTopics),
		slog.Duration("elapsed", elapsed),
	}
	if summary.TopInfluencer != nil {
		attrs = append(attrs, slog.String("top_influencer", summary.TopInfluencer.Username))
	}
	slog.Info("[Main] Analysis complete", attrs...)

	for _, trend := range trends {
		slog.Info("[Main] Trend",
			slog.String("keyword", trend.Keyword),
			slog.Int("volume", trend.Volume),
			slog.Float64("sentiment", trend.Sentiment.Score),
			slog.String("label", string(trend.Sentiment.Label)))
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("[Main] Serving metrics", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("[Main] Metrics server stopped", slog.String("error", err.Error()))
	}
}

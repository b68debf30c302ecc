package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

const HEALTHCHECK_INTERVAL = 15 * time.Second

// BreakerReporter is implemented by *clients.GrokClient.
type BreakerReporter interface {
	BreakerState() gobreaker.State
}

// MonitorGrokHealth polls the client's circuit breaker and stores whether
// remote analysis is currently usable. It returns when ctx is done.
func MonitorGrokHealth(ctx context.Context, client BreakerReporter, healthy *atomic.Bool, clock clockwork.Clock) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(HEALTHCHECK_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			state := client.BreakerState()
			isHealthy := state != gobreaker.StateOpen

			was := healthy.Swap(isHealthy)
			switch {
			case was && !isHealthy:
				slog.Warn("[HealthCheck] Grok circuit is open, batches will use the lexicon",
					slog.String("state", state.String()))
			case !was && isHealthy:
				slog.Info("[HealthCheck] Grok circuit recovered",
					slog.String("state", state.String()))
			}
		}
	}
}

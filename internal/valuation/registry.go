package valuation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkorzen/poly-pnl/internal/identity"
	"github.com/mkorzen/poly-pnl/internal/model"
)

// ResolutionFetcher supplies the full set of known resolution records.
// Implemented by Client (REST) and ResolutionStore (postgres).
type ResolutionFetcher interface {
	FetchResolutions(ctx context.Context) ([]model.ResolutionRecord, error)
}

// RegistryConfig holds resolution registry configuration.
type RegistryConfig struct {
	RefreshInterval time.Duration // How often to re-fetch resolutions
	InitialTimeout  time.Duration // Timeout for the initial load
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		RefreshInterval: 5 * time.Minute,
		InitialTimeout:  30 * time.Second,
	}
}

// Registry is an in-memory Resolver kept current by periodic refresh.
//
// Read-mostly: many reconciliation workers read it concurrently while one
// refresh goroutine adds newly resolved markets. A settlement transitions
// absent -> present exactly once; a refresh that reports a different price
// for an already-known key is logged and ignored, the first value wins.
type Registry struct {
	cfg     RegistryConfig
	fetcher ResolutionFetcher
	logger  *slog.Logger

	mu          sync.RWMutex
	prices      map[Key]float64
	lastRefresh time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a resolution registry.
func NewRegistry(cfg RegistryConfig, fetcher ResolutionFetcher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		prices:  make(map[Key]float64),
	}
}

// Start performs the initial load and begins the refresh loop.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	loadCtx, cancel := context.WithTimeout(r.ctx, r.cfg.InitialTimeout)
	defer cancel()
	if err := r.refresh(loadCtx); err != nil {
		return err
	}

	r.wg.Add(1)
	go r.refreshLoop()

	r.logger.Info("resolution registry started",
		"resolved_outcomes", r.Size(),
		"refresh_interval", r.cfg.RefreshInterval,
	)
	return nil
}

// Stop halts the refresh loop.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// SettlementPrice implements Resolver.
func (r *Registry) SettlementPrice(_ context.Context, key Key) (float64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prices[key]
	return p, ok, nil
}

// Settlements implements Resolver.
func (r *Registry) Settlements(_ context.Context, keys []Key) (map[Key]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[Key]float64, len(keys))
	for _, k := range keys {
		if p, ok := r.prices[k]; ok {
			out[k] = p
		}
	}
	return out, nil
}

// Size returns the number of resolved outcomes known.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prices)
}

// LastRefresh returns when the registry last synced successfully.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}

func (r *Registry) refreshLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.refresh(r.ctx); err != nil {
				// Keep serving the last good snapshot; next tick retries.
				r.logger.Warn("resolution refresh failed", "error", err)
			}
		}
	}
}

func (r *Registry) refresh(ctx context.Context) error {
	start := time.Now()
	records, err := r.fetcher.FetchResolutions(ctx)
	if err != nil {
		return err
	}

	added := 0
	r.mu.Lock()
	for _, rec := range records {
		key := Key{MarketID: identity.CanonicalID(rec.MarketID), Outcome: rec.Outcome}
		if existing, ok := r.prices[key]; ok {
			if existing != rec.Settlement {
				r.logger.Warn("resolution price changed upstream, keeping first value",
					"market", rec.MarketID,
					"outcome", rec.Outcome,
					"first", existing,
					"reported", rec.Settlement,
				)
			}
			continue
		}
		r.prices[key] = rec.Settlement
		added++
	}
	r.lastRefresh = time.Now()
	r.mu.Unlock()

	if added > 0 {
		r.logger.Info("resolution refresh complete",
			"added", added,
			"total", r.Size(),
			"duration", time.Since(start),
		)
	}
	return nil
}

package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marvelcn015/crypto-tracker/internal/api"
	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// Source fetches canonical state. *api.Client satisfies it.
type Source interface {
	ListAssets(ctx context.Context, limit int) ([]model.Asset, error)
	GetAsset(ctx context.Context, id string) (model.AssetDetail, error)
	ListAlerts(ctx context.Context, status model.AlertStatus) ([]model.Alert, error)
	ListFavorites(ctx context.Context) ([]model.Favorite, error)
}

// Sink receives fetched state. *market.Store satisfies it.
type Sink interface {
	LoadAssets(assets []model.Asset) market.SyncResult
	UpsertAsset(a model.Asset)
	LoadAlerts(alerts []model.Alert) market.SyncResult
	SetFavorites(favorites []model.Favorite)
}

// WatchSource lists assets whose details should be refreshed.
type WatchSource interface {
	WatchedAssets() []string
}

// WatchSourceFunc is a function adapter for WatchSource.
type WatchSourceFunc func() []string

func (f WatchSourceFunc) WatchedAssets() []string {
	return f()
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Refresh interval (default: 5m)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
	AssetLimit  int           // Size of the asset list fetch (default: 20)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		AssetLimit:  20,
	}
}

// Stats contains refresh counters.
type Stats struct {
	Cycles      int64
	Failures    int64
	LastRefresh time.Time
}

// Poller periodically refreshes canonical state via the REST API.
type Poller struct {
	cfg     Config
	source  Source
	sink    Sink
	watched WatchSource
	logger  *slog.Logger

	cycles      atomic.Int64
	failures    atomic.Int64
	lastRefresh atomic.Int64 // Unix nanos

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. watched may be nil.
func New(cfg Config, source Source, sink Sink, watched WatchSource, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		watched: watched,
		logger:  logger.With("component", "poller"),
	}
}

// Start begins the refresh loop. The first refresh happens after one
// interval; callers load initial state with Refresh.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("refresh poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("refresh poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main refresh loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(p.ctx); err != nil && p.ctx.Err() == nil {
				p.logger.Warn("refresh failed", "err", err)
			}
		}
	}
}

// Refresh fetches everything once. Each fetch is applied as soon as it
// succeeds, so one failure leaves the rest of the state fresh. It returns
// the first failure.
func (p *Poller) Refresh(ctx context.Context) error {
	start := time.Now()
	p.cycles.Add(1)

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	g.Go(func() error {
		return p.fetch(ctx, "assets", func(ctx context.Context) error {
			assets, err := p.source.ListAssets(ctx, p.cfg.AssetLimit)
			if err != nil {
				return err
			}
			p.sink.LoadAssets(assets)
			return nil
		})
	})

	g.Go(func() error {
		return p.fetch(ctx, "alerts", func(ctx context.Context) error {
			alerts, err := p.source.ListAlerts(ctx, "")
			if err != nil {
				return err
			}
			p.sink.LoadAlerts(alerts)
			return nil
		})
	})

	g.Go(func() error {
		return p.fetch(ctx, "favorites", func(ctx context.Context) error {
			favorites, err := p.source.ListFavorites(ctx)
			if err != nil {
				return err
			}
			p.sink.SetFavorites(favorites)
			return nil
		})
	})

	var watched []string
	if p.watched != nil {
		watched = p.watched.WatchedAssets()
	}
	for _, id := range watched {
		g.Go(func() error {
			return p.fetch(ctx, "asset "+id, func(ctx context.Context) error {
				detail, err := p.source.GetAsset(ctx, id)
				if errors.Is(err, api.ErrNotFound) {
					p.logger.Debug("watched asset not found", "asset", id)
					return nil
				}
				if err != nil {
					return err
				}
				p.sink.UpsertAsset(detail.Asset)
				return nil
			})
		})
	}

	err := g.Wait()
	if err != nil {
		p.failures.Add(1)
	} else {
		p.lastRefresh.Store(time.Now().UnixNano())
	}

	p.logger.Debug("refresh cycle complete",
		"watched", len(watched),
		"duration", time.Since(start),
		"err", err,
	)
	return err
}

// fetch runs one request under the per-request timeout.
func (p *Poller) fetch(ctx context.Context, what string, fn func(context.Context) error) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("refresh %s: %w", what, err)
	}
	return nil
}

// Stats returns refresh statistics.
func (p *Poller) Stats() Stats {
	s := Stats{
		Cycles:   p.cycles.Load(),
		Failures: p.failures.Load(),
	}
	if ns := p.lastRefresh.Load(); ns > 0 {
		s.LastRefresh = time.Unix(0, ns)
	}
	return s
}

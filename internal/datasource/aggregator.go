package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/finboard/internal/infra"
	"github.com/seenimoa/finboard/pkg/models"
)

// Aggregator assembles the homepage bundle from concurrent fetches.
type Aggregator struct {
	service *Service
	cache   *infra.SessionCache
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator that caches bundles for ttl in the
// service's session cache.
func NewAggregator(service *Service, ttl time.Duration) *Aggregator {
	return &Aggregator{
		service: service,
		cache:   service.Cache(),
		ttl:     ttl,
		logger:  service.logger,
		now:     time.Now,
	}
}

// Service returns the underlying fetch service for direct access.
func (a *Aggregator) Service() *Service { return a.service }

// Dashboard returns the homepage bundle, from cache when fresh.
func (a *Aggregator) Dashboard(ctx context.Context) (*models.DashboardBundle, error) {
	return infra.Fetch(ctx, a.cache, infra.DashboardKey, a.ttl, a.loadDashboard)
}

// Refresh drops the cached bundle and loads a new one.
func (a *Aggregator) Refresh(ctx context.Context) (*models.DashboardBundle, error) {
	if err := a.cache.Invalidate(ctx, infra.DashboardKey); err != nil {
		a.logger.Warn("cache invalidate failed", "key", infra.DashboardKey, "error", err)
	}
	return a.Dashboard(ctx)
}

// loadDashboard issues every homepage request concurrently. The join is
// all-or-nothing: the first failure cancels the rest and the whole load
// fails with ErrDashboardLoad.
func (a *Aggregator) loadDashboard(ctx context.Context) (*models.DashboardBundle, error) {
	start := a.now()
	bundle := &models.DashboardBundle{}
	s := a.service

	// Each goroutine writes a distinct field, so no lock is needed.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.MarketIndices(gctx)
		bundle.Indices = v
		return err
	})
	g.Go(func() error {
		v, err := s.ResearchSummary(gctx)
		bundle.ResearchSummary = v
		return err
	})
	g.Go(func() error {
		v, err := s.News(gctx)
		bundle.News = v
		return err
	})
	g.Go(func() error {
		v, err := s.LatestUpdates(gctx)
		bundle.LatestUpdates = v
		return err
	})
	g.Go(func() error {
		v, err := s.Earnings(gctx)
		bundle.Earnings = v
		return err
	})
	g.Go(func() error {
		v, err := s.Sidebar(gctx)
		if v != nil {
			bundle.Sidebar = *v
		}
		return err
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("dashboard load failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDashboardLoad, err)
	}

	bundle.FetchedAt = a.now().UTC()
	a.logger.Info("dashboard loaded", "indices", len(bundle.Indices), "news", len(bundle.News),
		"latency", a.now().Sub(start).Round(time.Millisecond))
	return bundle, nil
}

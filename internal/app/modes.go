package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predexlabs/oppengine/internal/engine"
	"github.com/predexlabs/oppengine/internal/server"
	"github.com/predexlabs/oppengine/internal/server/handler"
	"github.com/predexlabs/oppengine/internal/server/ws"
)

// EngineMode runs the scan orchestrator (and archiver when configured)
// without the HTTP gateway.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	g, ctx := errgroup.WithContext(ctx)

	scanner := a.buildScanner(deps, nil)
	g.Go(func() error {
		return scanner.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs the query and replay gateway without the scanner. Useful
// for scaling reads independently of the single engine writer.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, hub)

	return g.Wait()
}

// FullMode runs everything: scanner, gateway, WebSocket hub, and archiver.
// The hub receives opportunity events directly from the scanner.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	scanner := a.buildScanner(deps, hub)
	g.Go(func() error {
		return scanner.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, hub)
	}

	return g.Wait()
}

// buildScanner assembles the scan pipeline from configuration. hub may be
// nil when no WebSocket consumers exist.
func (a *App) buildScanner(deps *Dependencies, hub *ws.Hub) *engine.Scanner {
	facade := engine.NewSnapshotFacade(deps.SnapshotCache, deps.Snapshots, a.logger)
	lifecycle := engine.NewLifecycle(deps.Opportunities, a.logger)

	cfg := engine.ScanConfig{
		Interval:          a.cfg.Engine.ScanInterval.Duration,
		ExpiryWindow:      a.cfg.Engine.ExpiryWindow.Duration,
		MinConfidence:     a.cfg.Engine.MinConfidence,
		MinEdgeBps:        a.cfg.Engine.MinEdgeBps,
		RiskBufferBps:     a.cfg.Engine.RiskBufferBps,
		Buckets:           a.cfg.Engine.QBuckets,
		Concurrency:       a.cfg.Engine.ScanConcurrency,
		StaleAfter:        a.cfg.StaleThresholds(),
		DefaultStaleAfter: a.cfg.Engine.DefaultStaleAfter.Duration,
		VenueFees:         a.cfg.VenueFees(),
	}

	var alerter engine.Alerter
	if deps.Notifier.Senders() > 0 {
		alerter = deps.Notifier
	}
	var broadcaster engine.Broadcaster
	if hub != nil {
		broadcaster = hub
	}

	return engine.NewScanner(cfg, facade, lifecycle, deps.EventGroups, deps.Health, alerter, broadcaster, a.logger)
}

// startArchiver adds the archival loop to the errgroup when S3 is enabled.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		err := deps.Archiver.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}

// startHTTPServer adds the gateway server to the errgroup with a graceful
// shutdown goroutine.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	verifier := engine.NewReplayVerifier(
		deps.Opportunities,
		deps.Snapshots,
		deps.EventGroups,
		a.cfg.Engine.RiskBufferBps,
		a.cfg.Engine.QBuckets,
		a.cfg.VenueFees(),
		a.logger,
	)

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.Health, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Opportunities, verifier, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marks/internal/ai"
	"github.com/MrSnakeDoc/marks/internal/content"
	"github.com/MrSnakeDoc/marks/internal/enrichment"
	"github.com/MrSnakeDoc/marks/internal/httpserver"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/routes"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/scheduler"
	"github.com/MrSnakeDoc/marks/internal/version"
	"github.com/MrSnakeDoc/marks/internal/worker"
)

// Mode selects the roles a process plays.
type Mode struct {
	API    bool // serve /api/v1 and the ops routes on ListenPort
	Worker bool // consume jobs, run the maintenance loops
}

func (m Mode) String() string {
	switch {
	case m.API && m.Worker:
		return "all-in-one"
	case m.Worker:
		return "worker"
	default:
		return "api"
	}
}

// Run starts the roles of mode and blocks until ctx is done or a server
// fails. Shutdown order: HTTP servers, maintenance loops, worker pool.
func (a *App) Run(ctx context.Context, mode Mode) error {
	if !mode.API && !mode.Worker {
		return errors.New("nothing to run")
	}
	if a.queue == nil {
		return errors.New("run requires the redis queue")
	}

	a.logger.Infof("🚀 Starting marks %s (%s)", version.Version, mode)
	a.logger.Infof("marks %s", version.String())

	var (
		requeueTrigger chan struct{}
		reaper         *scheduler.StaleReaper
		requeuer       *scheduler.PendingRequeuer
		pool           *worker.Pool
	)

	if mode.Worker {
		if err := a.cfg.RequireAI(); err != nil {
			return err
		}
		requeueTrigger = make(chan struct{}, 1)
		reaper = scheduler.NewStaleReaper(a.store, a.logger, a.cfg.ReaperInterval, a.cfg.StaleAfter)
		requeuer = scheduler.NewPendingRequeuer(a.store, a.queue, a.logger,
			a.cfg.RequeueInterval, a.cfg.RequeueAfter, requeueTrigger)
		pool = worker.NewPool(a.queue, a.orchestrator(), a.metrics, a.logger, worker.Options{
			Concurrency: a.cfg.WorkerConcurrency,
			PollTimeout: a.cfg.QueuePollTimeout,
			NackDelay:   a.cfg.NackDelay,
		})
	}

	d := a.deps(requeueTrigger)

	var servers []*httpserver.Server
	if mode.API {
		servers = append(servers, httpserver.New(a.cfg, a.cfg.ListenPort, a.logger, d, routes.SurfaceAll))
	} else {
		servers = append(servers, httpserver.New(a.cfg, a.cfg.WorkerListenPort, a.logger, d, routes.SurfaceOps))
	}

	errCh := make(chan error, len(servers)+1)
	for _, s := range servers {
		go func() {
			if err := s.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	poolCtx, cancelPool := context.WithCancel(ctx)
	defer cancelPool()
	poolDone := make(chan struct{})

	if mode.Worker {
		if err := reaper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start stale reaper: %w", err)
		}
		a.logger.Info("stale reaper started", logger.Duration("interval", a.cfg.ReaperInterval))

		if err := requeuer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pending requeuer: %w", err)
		}
		a.logger.Info("pending requeuer started", logger.Duration("interval", a.cfg.RequeueInterval))

		go func() {
			defer close(poolDone)
			if err := pool.Run(poolCtx); err != nil {
				errCh <- fmt.Errorf("worker pool error: %w", err)
			}
		}()
	} else {
		close(poolDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		a.logger.Error("component failed, shutting down", logger.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			a.logger.Warn("failed to stop server", logger.Error(err))
		}
	}

	if mode.Worker {
		reaper.Stop()
		requeuer.Stop()
	}

	cancelPool()
	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("worker pool did not stop in time, in-flight jobs stay in the processing list")
	}

	a.logger.Info("✅ marks stopped cleanly")
	return runErr
}

func (a *App) deps(requeueTrigger chan struct{}) deps.Deps {
	d := deps.Deps{
		Logger:                a.logger,
		StartTime:             time.Now(),
		Version:               version.Version,
		Commit:                version.Commit,
		BuildDate:             version.BuildDate,
		GoVersion:             version.GoVersion,
		TimeNow:               time.Now,
		AllowedHosts:          a.cfg.AllowedHosts,
		AllowedCIDRS:          a.cfg.AllowedCIDRS,
		TrustProxy:            a.cfg.TrustProxy,
		Store:                 a.store,
		Tags:                  a.tags,
		AIDefaultOn:           a.cfg.AIDefaultOn,
		RateLimitBurst:        a.cfg.RateLimitBurst,
		RateLimitRefillPerMin: a.cfg.RateLimitRefillPerMin,
		RequeueTrigger:        requeueTrigger,
		Gatherer:              a.registry,
	}
	if a.queue != nil {
		d.Queue = a.queue
	}
	return d
}

func (a *App) orchestrator() *enrichment.Orchestrator {
	return enrichment.NewOrchestrator(enrichment.Deps{
		Store: a.store,
		Fetcher: content.NewFetcher(content.FetcherOptions{
			Timeout:   a.cfg.FetchTimeout,
			UserAgent: a.cfg.FetchUserAgent,
			MaxBytes:  a.cfg.FetchMaxBytes,
		}),
		Cleaner:   content.NewCleaner(),
		Converter: content.NewConverter(),
		Model: ai.NewClient(ai.Config{
			BaseURL:     a.cfg.AIBaseURL,
			APIKey:      a.cfg.AIAPIKey,
			Model:       a.cfg.AIModel,
			Timeout:     a.cfg.AITimeout,
			MaxTokens:   a.cfg.AIMaxTokens,
			Temperature: a.cfg.AITemperature,
			InputChars:  a.cfg.AIInputChars,
		}),
		Tags:    a.tags,
		Log:     a.logger,
		Metrics: a.metrics,
	}, a.cfg.JobTimeout)
}
